package cli

import (
	"runtime"

	"github.com/spf13/cobra"
)

// versionInfo is the structured form of `recall version -o json`.
type versionInfo struct {
	Version  string `json:"version" yaml:"version"`
	Go       string `json:"go" yaml:"go"`
	Platform string `json:"platform" yaml:"platform"`
}

var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print the version number",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationNoServices: "true"},
	RunE: func(cmd *cobra.Command, _ []string) error {
		info := versionInfo{
			Version:  version,
			Go:       runtime.Version(),
			Platform: runtime.GOOS + "/" + runtime.GOARCH,
		}
		return render(cmd, info, func() {
			cmd.Printf("recall version %s\n", info.Version)
		})
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
