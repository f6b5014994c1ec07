// Package selector turns a fused ranking into the final per-identity list:
// strength filtering, fairness-aware truncation to the budget, and final
// ordering.
package selector
