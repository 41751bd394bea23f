package modules

import (
	"github.com/silverlining-sec/nimbus/pkg/types"
)

const (
	Azure     types.Platform = "azure"
	Universal types.Platform = "universal"
)

type OpsecLevel string

const (
	Stealth  OpsecLevel = "stealth"
	Moderate OpsecLevel = "moderate"
	None     OpsecLevel = "none"
)

type Metadata struct {
	Id          string
	Name        string
	Description string
	Platform    types.Platform
	Authors     []string
	References  []string
	OpsecLevel  OpsecLevel
}
