package device

import (
	"regexp"
	"strings"
)

// Profile describes how to drive one vendor CLI over SSH.
type Profile struct {
	Vendor        string
	RunningConfig string
	Version       string
	ApplyScript   func(candidate string) string
	ParseFacts    func(output string) Facts
}

var profiles = map[string]Profile{
	"ios": {
		Vendor:        "Cisco",
		RunningConfig: "show running-config",
		Version:       "show version",
		ApplyScript: func(candidate string) string {
			return "configure terminal\n" + candidate + "\nend\nwrite memory\n"
		},
		ParseFacts: regexFacts("Cisco",
			regexp.MustCompile(`(?m)^(\S+) uptime is (.+)$`),
			regexp.MustCompile(`Version ([^,\s]+)`),
			regexp.MustCompile(`(?mi)^cisco (\S+) .*processor`),
			regexp.MustCompile(`Processor board ID (\S+)`),
		),
	},
	"eos": {
		Vendor:        "Arista",
		RunningConfig: "show running-config",
		Version:       "show version",
		ApplyScript: func(candidate string) string {
			return "configure\n" + candidate + "\nend\ncopy running-config startup-config\n"
		},
		ParseFacts: regexFacts("Arista",
			regexp.MustCompile(`(?m)^Hostname:\s*(\S+)()$`),
			regexp.MustCompile(`Software image version:\s*(\S+)`),
			regexp.MustCompile(`(?m)^Arista (\S+)`),
			regexp.MustCompile(`Serial number:\s*(\S+)`),
		),
	},
	"junos": {
		Vendor:        "Juniper",
		RunningConfig: "show configuration | display set | no-more",
		Version:       "show version | no-more",
		ApplyScript: func(candidate string) string {
			return "configure private\n" + candidate + "\ncommit and-quit\n"
		},
		ParseFacts: regexFacts("Juniper",
			regexp.MustCompile(`(?m)^Hostname:\s*(\S+)()$`),
			regexp.MustCompile(`Junos:\s*(\S+)`),
			regexp.MustCompile(`(?m)^Model:\s*(\S+)`),
			regexp.MustCompile(`(?m)^Serial:\s*(\S+)`),
		),
	},
}

// regexFacts builds a facts parser. The host expression captures the
// hostname and, optionally, the uptime as a second group.
func regexFacts(vendor string, host, version, model, serial *regexp.Regexp) func(string) Facts {
	first := func(re *regexp.Regexp, s string, group int) string {
		m := re.FindStringSubmatch(s)
		if len(m) <= group {
			return ""
		}
		return strings.TrimSpace(m[group])
	}
	return func(out string) Facts {
		return Facts{
			Hostname:     first(host, out, 1),
			Uptime:       first(host, out, 2),
			Vendor:       vendor,
			OSVersion:    first(version, out, 1),
			Model:        first(model, out, 1),
			SerialNumber: first(serial, out, 1),
		}
	}
}
