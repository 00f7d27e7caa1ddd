package fields

import (
	"strconv"
	"strings"

	"github.com/dmitrijs2005/fieldsync/internal/apiclient"
)

// HasConsent reports whether a member consented: some field whose id
// contains consentFieldID holds "true" (any case, trimmed) or has a selected
// option.
func HasConsent(raw []apiclient.RawCustomField, consentFieldID string) bool {
	if consentFieldID == "" {
		return false
	}
	for _, f := range raw {
		if !strings.Contains(strconv.Itoa(f.CustomFieldID), consentFieldID) {
			continue
		}
		if len(f.SelectedOptions) > 0 {
			return true
		}
		if f.Value != nil && strings.EqualFold(strings.TrimSpace(*f.Value), "true") {
			return true
		}
	}
	return false
}
