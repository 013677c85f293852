package domain

import (
	"crypto/sha1" //nolint:gosec // stable identifier, not authentication
	"encoding/hex"
)

// DocumentID derives the store document identifier for a context path. The
// derivation covers node path, workspace and dimension selector only; the
// node type deliberately stays out so a type change keeps the identifier,
// which is what duplicate-type cleanup relies on.
func DocumentID(p ContextPath) string {
	sum := sha1.Sum([]byte(p.String())) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// DocumentIDForPath derives the identifier from a serialized context path,
// substituting the workspace segment first when an override is given.
func DocumentIDForPath(contextPath, workspaceOverride string) (string, error) {
	p, err := ParseContextPath(contextPath)
	if err != nil {
		return "", err
	}
	return DocumentID(p.WithWorkspace(workspaceOverride)), nil
}
