package extractor

import (
	"strings"

	"spec-extractor/internal/models"
)

// VerifyGrounding splits records into those whose value appears in the chunk
// texts and those that do not. Matching ignores case and whitespace runs.
func VerifyGrounding(records []models.SpecRecord, chunks []models.Chunk) (kept, dropped []models.SpecRecord) {
	haystack := normalize(BuildContext(chunks))
	kept = []models.SpecRecord{}
	for _, r := range records {
		value := normalize(r.Value)
		if value != "" && strings.Contains(haystack, value) {
			kept = append(kept, r)
			continue
		}
		dropped = append(dropped, r)
	}
	return kept, dropped
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
