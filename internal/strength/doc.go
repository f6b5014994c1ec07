// Package strength scores candidate passwords independently of who they
// target and which generator proposed them.
//
// The default Entropy scorer reports zxcvbn's minimum-entropy estimate in bits:
// dictionary words, dates, keyboard walks, repeats and sequences all lower the
// estimate, random-looking strings raise it. Bounds decide which candidates are
// plausible targeted guesses; the selector applies them, generators never do.
package strength
