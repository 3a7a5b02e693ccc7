package dsl

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	entityRe = regexp.MustCompile(`^entity\s+(\w+):`)
	fieldRe  = regexp.MustCompile(`^\s*([\w_]+):\s*([^\s#]+)(.*)$`)
	moduleRe = regexp.MustCompile(`^\s*module\s+([A-Za-z0-9_.-]+)\s*$`)
	boundsRe = regexp.MustCompile(`^(-?[0-9]+(?:\.[0-9]+)?)?\.\.(-?[0-9]+(?:\.[0-9]+)?)$`)
)

// parse: options tokenizer — делит "k=v k2='v 2' pattern=^[A-Z0-9 _-]+$" на токены,
// не рвёт по пробелам внутри кавычек/скобок
func splitOptionTokens(s string) []string {
	var out []string
	var buf []rune
	inSingle, inDouble := false, false
	bracketDepth := 0 // внутри [ ... ] у регэкспа

	flush := func() {
		if len(buf) > 0 {
			out = append(out, string(buf))
			buf = buf[:0]
		}
	}

	for _, r := range s {
		switch r {
		case '\'':
			if !inDouble && bracketDepth == 0 {
				inSingle = !inSingle
			}
			buf = append(buf, r)
		case '"':
			if !inSingle && bracketDepth == 0 {
				inDouble = !inDouble
			}
			buf = append(buf, r)
		case '[':
			if !inSingle && !inDouble {
				bracketDepth++
			}
			buf = append(buf, r)
		case ']':
			if !inSingle && !inDouble && bracketDepth > 0 {
				bracketDepth--
			}
			buf = append(buf, r)
		default:
			// разделитель — пробел И ТОЛЬКО если мы не в кавычках и не внутри [...]
			if (r == ' ' || r == '\t') && !inSingle && !inDouble && bracketDepth == 0 {
				flush()
				continue
			}
			buf = append(buf, r)
		}
	}
	flush()
	return out
}

// parseBounds разбирает "1..100000" / "0.5..2.5" / "..60" (min по умолчанию 0).
// Одиночное число трактуем как max.
func parseBounds(s string) (min, max float64, err error) {
	s = strings.TrimSpace(s)
	if m := boundsRe.FindStringSubmatch(s); m != nil {
		if m[1] != "" {
			min, err = strconv.ParseFloat(m[1], 64)
			if err != nil {
				return 0, 0, fmt.Errorf("bad lower bound %q", m[1])
			}
		}
		max, err = strconv.ParseFloat(m[2], 64)
		if err != nil {
			return 0, 0, fmt.Errorf("bad upper bound %q", m[2])
		}
		return min, max, nil
	}
	max, err = strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad bounds %q (expected min..max or max)", s)
	}
	return 0, max, nil
}

// unquote снимает одинарные/двойные кавычки, если значение ими обёрнуто
func unquote(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

// parseField собирает Field из имени, типа и хвоста с опциями.
// Правила валидации извлекаются здесь же, при конструировании —
// никакой рефлексии на рантайме.
func parseField(name, rawType, tail string) (Field, error) {
	f := Field{
		Name:     name,
		Type:     FieldType(strings.ToLower(rawType)),
		Nullable: true,
	}
	if !KnownType(f.Type) {
		return Field{}, fmt.Errorf("field %q: unknown type %q", name, rawType)
	}

	optsRaw := strings.TrimSpace(tail)
	// срезать комментарий
	if i := strings.IndexByte(optsRaw, '#'); i >= 0 {
		optsRaw = strings.TrimSpace(optsRaw[:i])
	}
	// убрать необязательный префикс "options:"
	if strings.HasPrefix(strings.ToLower(optsRaw), "options:") {
		optsRaw = strings.TrimSpace(optsRaw[len("options:"):])
	}
	// запятые считаем разделителями
	optsRaw = strings.ReplaceAll(optsRaw, ",", " ")

	for _, tok := range splitOptionTokens(optsRaw) {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		key := strings.ToLower(tok)
		val := ""
		if i := strings.Index(tok, "="); i >= 0 {
			key = strings.ToLower(strings.TrimSpace(tok[:i]))
			val = unquote(strings.TrimSpace(tok[i+1:]))
		}

		switch key {
		case "required":
			f.Nullable = false
			f.Rules = append(f.Rules, Rule{Kind: RuleRequired})
		case "nullable":
			f.Nullable = true
		case "length":
			min, max, err := parseBounds(val)
			if err != nil {
				return Field{}, fmt.Errorf("field %q: length: %w", name, err)
			}
			f.Rules = append(f.Rules, Rule{Kind: RuleLength, Min: min, Max: max})
		case "range":
			min, max, err := parseBounds(val)
			if err != nil {
				return Field{}, fmt.Errorf("field %q: range: %w", name, err)
			}
			f.Rules = append(f.Rules, Rule{Kind: RuleRange, Min: min, Max: max})
		case "pattern":
			r := Rule{Kind: RulePattern, Pattern: val}
			if err := r.CompilePattern(); err != nil {
				return Field{}, fmt.Errorf("field %q: %w", name, err)
			}
			f.Rules = append(f.Rules, r)
		case "format":
			f.Rules = append(f.Rules, Rule{Kind: RuleFormat, Format: strings.ToLower(val)})
		default:
			return Field{}, fmt.Errorf("field %q: unknown option %q", name, tok)
		}
	}
	return f, nil
}

// LoadEntities читает один *.dsl файл и возвращает список Entity
func LoadEntities(path string) ([]*Entity, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var entities []*Entity
	var current *Entity
	currentModule := ""

	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// module ...
		if m := moduleRe.FindStringSubmatch(line); m != nil {
			currentModule = m[1]
			continue
		}

		// entity <Name>:
		if m := entityRe.FindStringSubmatch(line); m != nil {
			// закрыть предыдущую сущность
			if current != nil {
				entities = append(entities, current)
			}
			current = &Entity{Name: m[1], Module: currentModule}
			continue
		}
		if current == nil {
			// игнорируем всё вне сущности
			continue
		}

		// поля
		if m := fieldRe.FindStringSubmatch(line); m != nil {
			f, err := parseField(m[1], m[2], m[3])
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
			}
			if _, exists := current.GetField(f.Name); exists {
				return nil, fmt.Errorf("%s:%d: %s.%s: %w", path, lineNo, current.FQN(), f.Name, ErrDuplicateField)
			}
			current.Fields = append(current.Fields, f)
			continue
		}
	}

	if current != nil {
		entities = append(entities, current)
	}
	return entities, scanner.Err()
}

// LoadAllEntities обходит дерево root и собирает все *.dsl в map FQN -> Entity
func LoadAllEntities(root string) (map[string]*Entity, error) {
	result := make(map[string]*Entity)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(d.Name()), ".dsl") {
			return nil
		}

		ents, err := LoadEntities(path)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		for _, e := range ents {
			if e == nil || e.Name == "" {
				return fmt.Errorf("empty entity name in %s", path)
			}
			if e.Module == "" {
				return fmt.Errorf("entity %q in %s has no module — add `module <name>` at the top", e.Name, path)
			}
			fqn := e.FQN()
			if _, exists := result[fqn]; exists {
				return fmt.Errorf("duplicate entity %q in module %q (file: %s)", e.Name, e.Module, path)
			}
			result[fqn] = e
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
