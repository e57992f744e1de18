package rpcserver

import "encoding/json"

// defaultBudgetBytes mirrors spec.md §4.14's default when the configured
// search.max_response_kb is unset or non-positive.
const defaultBudgetBytes = 32 * 1024

func budgetBytes(maxResponseKB int) int {
	if maxResponseKB <= 0 {
		return defaultBudgetBytes
	}
	return maxResponseKB * 1024
}

func jsonLen(v interface{}) int {
	b, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return len(b)
}

// grepFileJSON/lineGroupJSON/grepSummaryJSON/grepResponseJSON are the wire
// shape search_grep and search_fast return. Lines holds the matched line
// numbers (capped then dropped by truncation phases 1/4); LineContent holds
// the surrounding-context groups (dropped wholesale by phase 2).
type lineGroupJSON struct {
	StartLine    int      `json:"startLine"`
	Lines        []string `json:"lines"`
	MatchIndices []int    `json:"matchIndices,omitempty"`
}

type grepFileJSON struct {
	Path                 string          `json:"path"`
	Score                float64         `json:"score"`
	DistinctTermsMatched int             `json:"distinctTermsMatched"`
	MatchedTokens        []string        `json:"matchedTokens,omitempty"`
	Lines                []int           `json:"lines,omitempty"`
	LineContent          []lineGroupJSON `json:"lineContent,omitempty"`
}

type grepSummaryJSON struct {
	TotalFiles        int    `json:"totalFiles"`
	TotalResults      int    `json:"totalResults"`
	TotalOccurrences  int    `json:"totalOccurrences"`
	SearchMode        string `json:"searchMode"`
	ResponseTruncated bool   `json:"responseTruncated,omitempty"`
	TruncationReason  string `json:"truncationReason,omitempty"`
}

type grepResponseJSON struct {
	Files   []grepFileJSON  `json:"files"`
	Summary grepSummaryJSON `json:"summary"`
}

// truncateGrep applies spec.md §4.14's five-phase algorithm in place,
// stopping as soon as the result fits under budget. Phases 1-4 are the
// grep-shape-specific reductions; phase 5 (generic array fallback) trims
// Files from the tail if the shape-specific phases were not enough.
func truncateGrep(resp *grepResponseJSON, budget int) {
	if jsonLen(resp) <= budget {
		return
	}
	resp.Summary.ResponseTruncated = true

	resp.Summary.TruncationReason = "lines capped to 10 per file"
	for i := range resp.Files {
		if len(resp.Files[i].Lines) > 10 {
			resp.Files[i].Lines = resp.Files[i].Lines[:10]
		}
	}
	if jsonLen(resp) <= budget {
		return
	}

	resp.Summary.TruncationReason = "lineContent dropped"
	for i := range resp.Files {
		resp.Files[i].LineContent = nil
	}
	if jsonLen(resp) <= budget {
		return
	}

	resp.Summary.TruncationReason = "matchedTokens capped to 20"
	for i := range resp.Files {
		if len(resp.Files[i].MatchedTokens) > 20 {
			resp.Files[i].MatchedTokens = resp.Files[i].MatchedTokens[:20]
		}
	}
	if jsonLen(resp) <= budget {
		return
	}

	resp.Summary.TruncationReason = "lines dropped"
	for i := range resp.Files {
		resp.Files[i].Lines = nil
	}
	if jsonLen(resp) <= budget {
		return
	}

	resp.Summary.TruncationReason = "files truncated from tail"
	for len(resp.Files) > 0 && jsonLen(resp) > budget {
		resp.Files = resp.Files[:len(resp.Files)-1]
	}
}

// truncateGenericArray implements spec.md §4.14 phase 5 for response shapes
// other than grep's (definitions, find results, caller trees): truncate the
// named principal array from the tail until under budget, and report the
// truncation metadata the spec names.
func truncateGenericArray(data map[string]interface{}, arrayField, hint string, budget int) {
	original := jsonLen(data)
	if original <= budget {
		return
	}
	arr, ok := data[arrayField].([]interface{})
	if !ok {
		// Typed slices ([]query.DefResult, []fileindex.Result, ...) go
		// through a JSON round-trip so they can be cut generically.
		b, err := json.Marshal(data[arrayField])
		if err != nil || json.Unmarshal(b, &arr) != nil || arr == nil {
			return
		}
	}
	for len(arr) > 0 && jsonLen(data) > budget {
		arr = arr[:len(arr)-1]
		data[arrayField] = arr
	}
	data["responseTruncated"] = true
	data["originalResponseBytes"] = original
	data["returned"] = len(arr)
	data["hint"] = hint
}
