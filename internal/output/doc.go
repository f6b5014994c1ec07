// Package output writes and reads run artifacts.
//
// The TSV artifact has a header row and one row per selected candidate:
//
//	identity	rank	password	sources	fused_rank	strength
//
// An identity with no selection is kept as a single row with rank 0 and an
// empty password, so every input identity appears in the artifact. Fields
// that contain tabs, quotes or line breaks are quoted.
//
// The answer artifact lists one password per line, identities in input order,
// separated by "<END>" lines. This is the format the file generator reads.
package output
