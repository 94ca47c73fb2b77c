package metrics

import (
	"runtime"
	"runtime/debug"

	"github.com/prometheus/client_golang/prometheus"
)

var buildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
	Name: "bimcloud_build_info",
	Help: "Always 1; labels identify the running binary.",
}, []string{"version", "commit", "go_version"})

func init() {
	register(buildInfo)
}

// SetBuildInfo publishes the binary's identity. Placeholder values left by a plain `go build`
// are filled from the module build info when the toolchain recorded it. Only one series is kept.
func SetBuildInfo(version, commit string) {
	if bi, ok := debug.ReadBuildInfo(); ok {
		if version == "" || version == "dev" {
			if v := bi.Main.Version; v != "" && v != "(devel)" {
				version = v
			}
		}
		if commit == "" || commit == "none" {
			for _, s := range bi.Settings {
				if s.Key == "vcs.revision" && s.Value != "" {
					commit = s.Value
				}
			}
		}
	}
	buildInfo.Reset()
	buildInfo.WithLabelValues(version, commit, runtime.Version()).Set(1)
}
