// Package version reports the gotable build, injected via ldflags:
//
//	go build -ldflags "-X github.com/NicolasHaas/gotable/pkg/version.tag=v0.1.0
//	  -X github.com/NicolasHaas/gotable/pkg/version.commit=abc1234
//	  -X github.com/NicolasHaas/gotable/pkg/version.date=2026-01-01"
package version

import "runtime/debug"

var (
	tag    = ""
	commit = ""
	date   = ""
)

// Info describes one build.
type Info struct {
	Tag    string `json:"tag,omitempty"`
	Commit string `json:"commit,omitempty"`
	Date   string `json:"date,omitempty"`
}

// Get returns the build info. When no ldflags were given it falls back to
// the VCS stamp the go tool embeds.
func Get() Info {
	info := Info{Tag: tag, Commit: commit, Date: date}
	if info.Commit != "" {
		return info
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if len(s.Value) > 7 {
					info.Commit = s.Value[:7]
				} else {
					info.Commit = s.Value
				}
			case "vcs.time":
				if info.Date == "" {
					info.Date = s.Value
				}
			}
		}
	}
	return info
}

// String returns the tag, else the short commit, else "dev".
func String() string {
	info := Get()
	switch {
	case info.Tag != "":
		return info.Tag
	case info.Commit != "":
		return info.Commit
	default:
		return "dev"
	}
}

// Full returns "tag (commit) built date", dropping whatever is unknown.
func Full() string {
	info := Get()
	s := String()
	if info.Tag != "" && info.Commit != "" {
		s += " (" + info.Commit + ")"
	}
	if info.Date != "" && s != "dev" {
		s += " built " + info.Date
	}
	return s
}
