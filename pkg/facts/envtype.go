package facts

import "strings"

// EnvType is the catalogue classification of an environment.
type EnvType string

// Environment types.
const (
	EnvDev     EnvType = "dev"
	EnvTest    EnvType = "test"
	EnvStage   EnvType = "stage"
	EnvPreprod EnvType = "preprod"
	EnvProd    EnvType = "prod"
)

var envTypes = map[string]EnvType{
	"staging":       EnvStage,
	"uat":           EnvStage,
	"stage":         EnvStage,
	"test":          EnvStage,
	"demo":          EnvTest,
	"dev":           EnvDev,
	"development":   EnvDev,
	"preprod":       EnvPreprod,
	"preproduction": EnvPreprod,
	"production":    EnvProd,
	"prod":          EnvProd,
}

// Classify maps an environment name to its type. Unrecognised names report false.
func Classify(name string) (EnvType, bool) {
	t, ok := envTypes[strings.ToLower(strings.TrimSpace(name))]
	return t, ok
}

// KnownEnvironmentNames lists every name Classify recognises.
func KnownEnvironmentNames() []string {
	names := make([]string, 0, len(envTypes))
	for n := range envTypes {
		names = append(names, n)
	}
	return names
}
