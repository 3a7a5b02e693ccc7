package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// slug — безопасное имя файла из описания миграции
func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugRe.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		s = "migration"
	}
	return s
}

// SaveRecord пишет запись в <dir>/<id>_<slug>.yaml и возвращает путь.
// Файл — единица авторства: один record = один файл, как сгенерированная миграция.
func SaveRecord(dir string, rec *Record) (string, error) {
	if err := rec.check(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create migrations dir: %w", err)
	}

	data, err := yaml.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal migration %s: %w", rec.ID, err)
	}

	path := filepath.Join(dir, rec.ID+"_"+slug(rec.Description)+".yaml")
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("migration file already exists: %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// LoadRecords читает все *.yaml/*.yml миграции из dir, в порядке id (ULID = хронология).
// Отсутствующая директория — это просто пустой набор миграций.
func LoadRecords(dir string) ([]*Record, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var records []*Record
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		var rec Record
		if err := yaml.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("parse migration %s: %w", name, err)
		}
		rec.Status = StatusAuthored
		if err := rec.check(); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		records = append(records, &rec)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })

	// дубликат id в двух файлах — порча журнала
	for i := 1; i < len(records); i++ {
		if records[i].ID == records[i-1].ID {
			return nil, fmt.Errorf("duplicate migration id %s", records[i].ID)
		}
	}
	return records, nil
}
