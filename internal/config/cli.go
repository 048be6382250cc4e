package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Command implements the `cfg` admin CLI surface (spec §6.7):
// `cfg [<prefix>|<key> <value>|reset [key]|defaults|reload]`.
func Command(r *Registry, args []string) string {
	if len(args) == 0 {
		return listAll(r)
	}

	switch args[0] {
	case "defaults":
		return listDefaults(r)
	case "reload":
		if err := r.Load(); err != nil {
			return fmt.Sprintf("reload failed: %v", err)
		}
		return "configuration reloaded"
	case "reset":
		if len(args) == 1 {
			if err := r.ResetAll(); err != nil {
				return fmt.Sprintf("reset failed: %v", err)
			}
			return "all keys reset to defaults"
		}
		if err := r.Reset(args[1]); err != nil {
			return err.Error()
		}
		return fmt.Sprintf("%s reset to default", args[1])
	}

	if len(args) >= 2 {
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Sprintf("invalid value %q", args[1])
		}
		if err := r.SetByName(args[0], v); err != nil {
			return err.Error()
		}
		return fmt.Sprintf("%s = %d", args[0], v)
	}

	return listPrefix(r, args[0])
}

func listAll(r *Registry) string {
	entries := r.Entries()
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%-24s %d\r\n", e.Name, r.GetByEnum(e.Key))
	}
	return b.String()
}

func listPrefix(r *Registry, prefix string) string {
	entries := r.Entries()
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	var b strings.Builder
	for _, e := range entries {
		if strings.HasPrefix(e.Name, prefix) {
			fmt.Fprintf(&b, "%-24s %d\r\n", e.Name, r.GetByEnum(e.Key))
		}
	}
	if b.Len() == 0 {
		return fmt.Sprintf("no keys matching %q", prefix)
	}
	return b.String()
}

func listDefaults(r *Registry) string {
	entries := r.Entries()
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%-24s %d\r\n", e.Name, e.Default)
	}
	return b.String()
}
