// api/names.go
package api

import "strings"

// NormalizeEntityName возвращает FQN ("module.Name") по паре {module, entity}.
// Если module пустой, пытается найти уникальную сущность с таким именем среди всех модулей.
func (s *Storage) NormalizeEntityName(module, name string) (string, bool) {
	if name == "" {
		return "", false
	}
	ml := strings.ToLower(strings.TrimSpace(module))
	nl := strings.ToLower(strings.TrimSpace(name))

	s.mu.RLock()
	defer s.mu.RUnlock()

	// 1) есть модуль — ищем регистронезависимое совпадение FQN
	if ml != "" {
		if _, ok := s.Schemas[module+"."+name]; ok {
			return module + "." + name, true
		}
		for fqn := range s.Schemas {
			dot := strings.IndexByte(fqn, '.')
			if dot <= 0 {
				continue
			}
			fm, fn := fqn[:dot], fqn[dot+1:]
			if strings.ToLower(fm) == ml && strings.ToLower(fn) == nl {
				return fqn, true
			}
		}
		return "", false
	}

	// 2) модуля нет — имя должно быть уникально среди всех
	var found string
	for fqn := range s.Schemas {
		dot := strings.IndexByte(fqn, '.')
		if dot <= 0 {
			continue
		}
		fn := fqn[dot+1:]
		if strings.ToLower(fn) == nl {
			if found != "" { // неуникально
				return "", false
			}
			found = fqn
		}
	}
	if found != "" {
		return found, true
	}
	return "", false
}

// splitFQN("module.Entity") -> ("module","Entity")
func splitFQN(fqn string) (string, string) {
	i := strings.IndexByte(fqn, '.')
	if i <= 0 || i >= len(fqn)-1 {
		return "", fqn
	}
	return fqn[:i], fqn[i+1:]
}
