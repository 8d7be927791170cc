package version

import (
	"fmt"
	"runtime/debug"
	"strings"
)

func init() {
	buildInfo = moduleBuildInfo
}

// moduleBuildInfo lists the main module, the VCS state it was built from
// and every dependency linked into the binary.
func moduleBuildInfo() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "not built in module mode"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, " mod\t%s\t%s\t%s\n", info.Main.Path, info.Main.Version, info.Main.Sum)
	for _, setting := range info.Settings {
		if strings.HasPrefix(setting.Key, "vcs.") {
			fmt.Fprintf(&sb, " build\t%s=%s\n", setting.Key, setting.Value)
		}
	}
	for _, dep := range info.Deps {
		if dep.Replace != nil {
			fmt.Fprintf(&sb, " dep\t%s\t%s\t=> %s\t%s\n", dep.Path, dep.Version, dep.Replace.Path, dep.Replace.Version)
			continue
		}
		fmt.Fprintf(&sb, " dep\t%s\t%s\t%s\n", dep.Path, dep.Version, dep.Sum)
	}
	return sb.String()
}
