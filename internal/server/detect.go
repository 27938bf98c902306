package server

import (
	"path/filepath"
	"strings"
)

// extensionTypes maps a lower-cased file extension to the runtime that
// launches it.
var extensionTypes = map[string]ServerType{
	".csx": ServerTypeCSharpScript,
	".js":  ServerTypeNode,
	".exe": ServerTypeExecutable,
	".py":  ServerTypePython,
}

// keywordTypes is the fallback classification table for paths whose extension
// is unrecognized. Checked in order against the lower-cased path; first match
// wins, so the order here is the priority order.
var keywordTypes = []struct {
	keyword string
	typ     ServerType
}{
	{"csx", ServerTypeCSharpScript},
	{"node", ServerTypeNode},
	{"dotnet", ServerTypeExecutable},
	{"python", ServerTypePython},
}

// DetectServerType classifies a server artifact path into the runtime needed
// to launch it. Pure string inspection, no filesystem access; paths are
// matched case-insensitively.
func DetectServerType(path string) ServerType {
	if path == "" {
		return ServerTypeUnknown
	}

	if t, ok := extensionTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return t
	}

	lower := strings.ToLower(path)
	for _, entry := range keywordTypes {
		if strings.Contains(lower, entry.keyword) {
			return entry.typ
		}
	}

	return ServerTypeUnknown
}
