// SPDX-License-Identifier: MPL-2.0

package pacman

import (
	"bufio"
	"context"
	"strings"
)

type (
	// PackageInfo is the parsed "Key : Value" block printed by pacman -Qi.
	PackageInfo struct {
		Fields map[string]string
	}

	// Stats summarizes the local package database.
	Stats struct {
		Installed int `json:"installed" yaml:"installed"`
		Explicit  int `json:"explicit" yaml:"explicit"`
		Foreign   int `json:"foreign" yaml:"foreign"`
		Orphans   int `json:"orphans" yaml:"orphans"`
	}
)

// Get returns a field value; pacman prints "None" for empty fields, which
// is returned as "".
func (p *PackageInfo) Get(key string) string {
	v := p.Fields[key]
	if v == "None" {
		return ""
	}
	return v
}

// RequiredBy lists installed packages that depend on this one.
func (p *PackageInfo) RequiredBy() []string {
	return strings.Fields(p.Get("Required By"))
}

// URL is the upstream homepage.
func (p *PackageInfo) URL() string {
	return p.Get("URL")
}

// LocalInfo parses pacman -Qi for an installed package.
func (c *Client) LocalInfo(ctx context.Context, name string) (*PackageInfo, error) {
	out, err := c.output(ctx, "-Qi", name)
	if err != nil {
		return nil, err
	}
	return parseInfo(out), nil
}

// parseInfo reads the first record of -Qi/-Si output. Values wrapped onto
// continuation lines (leading whitespace, no colon column) are joined with
// a space.
func parseInfo(out string) *PackageInfo {
	info := &PackageInfo{Fields: make(map[string]string)}
	var last string

	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			if len(info.Fields) > 0 {
				break
			}
			continue
		}
		key, value, ok := strings.Cut(line, " : ")
		if ok && !strings.HasPrefix(line, " ") {
			last = strings.TrimSpace(key)
			info.Fields[last] = strings.TrimSpace(value)
			continue
		}
		if last != "" {
			info.Fields[last] += " " + strings.TrimSpace(line)
		}
	}
	return info
}

// Stats counts installed, explicitly installed, foreign (not in any sync
// repository, typically AUR) and orphaned packages.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	for _, q := range []struct {
		flag string
		dst  *int
	}{
		{"-Qq", &s.Installed},
		{"-Qeq", &s.Explicit},
		{"-Qmq", &s.Foreign},
		{"-Qdtq", &s.Orphans},
	} {
		names, err := c.list(ctx, q.flag)
		if err != nil {
			return Stats{}, err
		}
		*q.dst = len(names)
	}
	return s, nil
}
