/*
 * This file is part of Weya (https://github.com/weyalighteagle/weya).
 * Copyright (C) 2025 Weya
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package security

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrInvalidID is returned when a session or persona ID format is invalid
	ErrInvalidID = errors.New("invalid identifier")

	// idPattern validates session/persona IDs to only allow safe characters
	idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// SanitizeLogInput removes newline characters to prevent log injection attacks.
// This function should be used for all user-controlled data before logging.
func SanitizeLogInput(input string) string {
	sanitized := strings.ReplaceAll(input, "\n", "")
	sanitized = strings.ReplaceAll(sanitized, "\r", "")
	return sanitized
}

// ValidateID ensures that a session or persona ID contains only safe
// characters and prevents path traversal. Only allows alphanumeric ASCII
// characters, dashes, and underscores.
func ValidateID(id string) error {
	if id == "" {
		return ErrInvalidID
	}

	if strings.Contains(id, "/") || strings.Contains(id, "\\") || strings.Contains(id, "..") {
		return ErrInvalidID
	}

	if !idPattern.MatchString(id) {
		return ErrInvalidID
	}

	return nil
}
