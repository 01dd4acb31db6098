// Package intervention detects when a user could use a therapeutic
// intervention, decides whether suggesting one now is appropriate, ranks the
// catalog for the user and tracks progress through a started intervention.
//
// Need classification uses fixed keyword lists behind the Classifier
// interface. The lists are deliberately simple; their exact behavior,
// including the evaluation order sleep, depression, anxiety, stress,
// breakup, grief, focus, determines which need wins a tie.
package intervention
