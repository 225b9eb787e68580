// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides utility functions shared across shoal.
package util

import (
	"errors"
	"net/url"
	"strings"
)

// ErrEmptyHost is returned when a host string is empty after trimming.
var ErrEmptyHost = errors.New("host address is empty")

// NormalizeHost turns a free-form host string into a base URL suitable for
// building API request paths. The result always carries a scheme (http://
// when none was given, since local model servers speak plain HTTP) and never
// ends in a slash.
//
//	"localhost:11434"        -> "http://localhost:11434"
//	"http://10.0.0.5:11434/" -> "http://10.0.0.5:11434"
//	"https://llm.lan"        -> "https://llm.lan"
func NormalizeHost(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrEmptyHost
	}

	if !strings.Contains(s, "://") {
		s = "http://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", errors.New("unsupported scheme: " + u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("host address has no host part: " + raw)
	}

	return strings.TrimRight(u.String(), "/"), nil
}
