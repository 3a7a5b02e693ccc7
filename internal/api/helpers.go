package api

import "time"

func flatten(rec *Record) map[string]any {
	out := map[string]any{
		"id":         rec.ID,
		"version":    rec.Version,
		"created_at": rec.CreatedAt.Format(time.RFC3339),
		"updated_at": rec.UpdatedAt.Format(time.RFC3339),
	}
	for k, v := range rec.Data {
		// пользовательские поля не перетирают служебные, если вдруг совпадут
		if _, clash := out[k]; clash {
			out["data."+k] = v
			continue
		}
		out[k] = v
	}
	return out
}
