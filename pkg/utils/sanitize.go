package utils

import (
	"net/url"
	"strings"
)

// CompactRecords убирает пустые и технические поля из сырых записей upstream API.
//
// Tourvisor отдаёт записи отелей с десятками полей, большая часть которых
// пустые строки. Ассистенту они не нужны, а токены расходуют.
//
// Удаляет:
//   - поля из fieldsToRemove (точное совпадение имени)
//   - пустые строки, nil, пустые вложенные объекты и массивы
func CompactRecords(records []map[string]any, fieldsToRemove ...string) []map[string]any {
	result := make([]map[string]any, 0, len(records))
	for _, r := range records {
		cleaned := cleanData(r, fieldsToRemove)
		if len(cleaned) > 0 {
			result = append(result, cleaned)
		}
	}
	return result
}

// cleanData рекурсивно очищает данные от технических полей и пустых значений
func cleanData(data map[string]any, fieldsToRemove []string) map[string]any {
	result := make(map[string]any)

	for key, value := range data {
		if shouldRemove(key, fieldsToRemove) {
			continue
		}

		switch v := value.(type) {
		case map[string]any:
			cleaned := cleanData(v, fieldsToRemove)
			if len(cleaned) > 0 {
				result[key] = cleaned
			}
		case []any:
			cleaned := cleanSlice(v, fieldsToRemove)
			if len(cleaned) > 0 {
				result[key] = cleaned
			}
		case string:
			if strings.TrimSpace(v) != "" {
				result[key] = v
			}
		case nil:
		default:
			result[key] = v
		}
	}

	return result
}

// cleanSlice очищает слайсы от технических полей и пустых значений
func cleanSlice(slice []any, fieldsToRemove []string) []any {
	result := make([]any, 0, len(slice))

	for _, item := range slice {
		switch v := item.(type) {
		case map[string]any:
			cleaned := cleanData(v, fieldsToRemove)
			if len(cleaned) > 0 {
				result = append(result, cleaned)
			}
		case []any:
			cleaned := cleanSlice(v, fieldsToRemove)
			if len(cleaned) > 0 {
				result = append(result, cleaned)
			}
		case string:
			if strings.TrimSpace(v) != "" {
				result = append(result, v)
			}
		case nil:
		default:
			result = append(result, v)
		}
	}

	return result
}

func shouldRemove(key string, fieldsToRemove []string) bool {
	for _, field := range fieldsToRemove {
		if key == field {
			return true
		}
	}
	return false
}

// secretParams — query параметры, значения которых нельзя писать в лог.
var secretParams = []string{"session", "api_key", "token"}

// MaskURL заменяет значения секретных query параметров на "***".
//
// Невалидный URL возвращается как есть.
func MaskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	q := u.Query()
	changed := false
	for _, p := range secretParams {
		if q.Has(p) {
			q.Set(p, "***")
			changed = true
		}
	}
	if !changed {
		return raw
	}

	u.RawQuery = q.Encode()
	return u.String()
}
