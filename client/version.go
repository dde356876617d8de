package client

import (
	"runtime"
	"runtime/debug"
	"slices"
	"sync"
)

const modulePath = "github.com/adamwoolhether/httpfetch"

// VersionInfo describes the linked transport. Protocols are listed in
// registration order.
type VersionInfo struct {
	Version    string
	TLSVersion string
	SSHVersion string
	Protocols  []string
}

// Version reports the transport's capabilities, listing extra after the
// built-in protocols. Without a transport it returns empty fields and a
// TLS backend of "none".
func Version(extra ...string) VersionInfo {
	if !Supported {
		return VersionInfo{TLSVersion: "none"}
	}

	return VersionInfo{
		Version:    "httpfetch/" + buildVersion(),
		TLSVersion: "GoTLS/" + runtime.Version(),
		SSHVersion: "",
		Protocols:  slices.Concat(builtinProtocols, extra),
	}
}

var buildVersion = sync.OnceValue(func() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "devel"
	}

	if bi.Main.Path == modulePath && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		return bi.Main.Version
	}
	for _, dep := range bi.Deps {
		if dep.Path == modulePath {
			return dep.Version
		}
	}

	return "devel"
})
