package websdk

// Environment selects the Square host the hosted SDK is served from.
type Environment string

const (
	Sandbox    Environment = "sandbox"
	Production Environment = "production"
)

const (
	sandboxScriptURL    = "https://sandbox.web.squarecdn.com/v1/square.js"
	productionScriptURL = "https://web.squarecdn.com/v1/square.js"
)

// ParseEnvironment treats anything that is not "production" as sandbox.
func ParseEnvironment(s string) Environment {
	if s == string(Production) {
		return Production
	}
	return Sandbox
}

func (e Environment) ScriptURL() string {
	if e == Production {
		return productionScriptURL
	}
	return sandboxScriptURL
}
