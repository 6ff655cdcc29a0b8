package partner

import (
	"strconv"
)

// Deal is the canonical shape every partner deal payload is normalized
// into. ID 0 means the partner did not supply a usable identifier; such
// deals are never deduplicated against each other.
type Deal struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Owner    string `json:"owner"`
	Files    []File `json:"files"`
}

// File is a normalized deal attachment.
type File struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	DownloadURL string `json:"download_url"`
}

// Alias chains tried in order; the first truthy value wins. The partner's
// field names are not contractually stable across sites or endpoints, so
// normalization degrades to defaults instead of failing when fields are
// renamed or missing.
var (
	dealIDAliases       = []string{"id", "deal_id", "_id"}
	dealNameAliases     = []string{"name", "title", "deal_name", "dealName"}
	dealCategoryAliases = []string{"category", "type", "deal_type", "assetClass"}
	dealOwnerAliases    = []string{"owner", "user", "username", "created_by", "createdBy"}
	dealFilesAliases    = []string{"files", "attachments", "documents", "fileAttachments"}

	fileIDAliases   = []string{"id", "file_id", "_id"}
	fileNameAliases = []string{"name", "filename", "file_name", "fileName"}
	fileURLAliases  = []string{"download_url", "url", "file_url", "fileUrl", "downloadUrl"}
)

// extractDeals resolves an ambiguous partner response into a flat list of
// raw deal entries. Priority order: a "deals" key (object or sequence),
// then a "data" key (sequence, or an object nesting "deals"), then the
// whole object as a single deal. A "data" key that matches neither shape
// consumes the branch and yields nothing.
func extractDeals(payload interface{}) []interface{} {
	switch v := payload.(type) {
	case []interface{}:
		return v
	case map[string]interface{}:
		if d, ok := v["deals"]; ok {
			return asDealList(d)
		}
		if d, ok := v["data"]; ok {
			switch inner := d.(type) {
			case []interface{}:
				return inner
			case map[string]interface{}:
				if dd, ok := inner["deals"]; ok {
					return asDealList(dd)
				}
			}
			return nil
		}
		return []interface{}{v}
	}
	return nil
}

func asDealList(v interface{}) []interface{} {
	if list, ok := v.([]interface{}); ok {
		return list
	}
	return []interface{}{v}
}

// normalizeDeals maps raw deal entries into the canonical shape. Entries
// that are not objects are silently dropped.
func normalizeDeals(raw []interface{}) []Deal {
	var deals []Deal
	for _, entry := range raw {
		obj, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		deal := Deal{
			ID:       firstInt(obj, dealIDAliases),
			Name:     firstString(obj, dealNameAliases),
			Category: firstString(obj, dealCategoryAliases),
			Owner:    firstString(obj, dealOwnerAliases),
			Files:    []File{},
		}
		if files := firstList(obj, dealFilesAliases); files != nil {
			deal.Files = normalizeFiles(files)
		}
		deals = append(deals, deal)
	}
	return deals
}

func normalizeFiles(raw []interface{}) []File {
	files := []File{}
	for _, entry := range raw {
		obj, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		file := File{
			ID:          firstInt(obj, fileIDAliases),
			Name:        firstString(obj, fileNameAliases),
			DownloadURL: firstString(obj, fileURLAliases),
		}
		// A file with no id, name, or url carries no information at all.
		if file.ID != 0 || file.Name != "" || file.DownloadURL != "" {
			files = append(files, file)
		}
	}
	return files
}

// dedupeDeals drops later occurrences of an id already seen, preserving
// order. Deals with id 0 are always kept: 0 signals "unknown identifier",
// not a shared key.
func dedupeDeals(deals []Deal) []Deal {
	seen := make(map[int]bool, len(deals))
	unique := make([]Deal, 0, len(deals))
	for _, deal := range deals {
		if deal.ID == 0 {
			unique = append(unique, deal)
			continue
		}
		if seen[deal.ID] {
			continue
		}
		seen[deal.ID] = true
		unique = append(unique, deal)
	}
	return unique
}

func firstList(obj map[string]interface{}, aliases []string) []interface{} {
	for _, key := range aliases {
		if list, ok := obj[key].([]interface{}); ok && len(list) > 0 {
			return list
		}
	}
	return nil
}

func firstString(obj map[string]interface{}, aliases []string) string {
	for _, key := range aliases {
		if s, ok := obj[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func firstInt(obj map[string]interface{}, aliases []string) int {
	for _, key := range aliases {
		switch v := obj[key].(type) {
		case float64:
			if v != 0 {
				return int(v)
			}
		case string:
			if n, err := strconv.Atoi(v); err == nil && n != 0 {
				return n
			}
		}
	}
	return 0
}
