package shell

// Host identifies where commands run. An empty or localhost URL selects
// in-process execution; anything else is reached over SSH using the named
// credentials.
type Host struct {
	URL         string `json:"url,omitempty" description:"host to execute commands on"`
	Credentials string `json:"credentials,omitempty" description:"secret resource with SSH credentials"`
}

// Input represents a shell execution request.
type Input struct {
	Host         *Host             `json:"host,omitempty" description:"host to execute commands on"`
	Directory    string            `json:"directory,omitempty" description:"directory where commands start"`
	Env          map[string]string `json:"env,omitempty" description:"environment variables set before commands run"`
	Commands     []string          `json:"commands,omitempty" description:"commands to execute on the target system"`
	TimeoutMs    int               `json:"timeoutMs,omitempty" yaml:"timeoutMs,omitempty" description:"max wait time before timing out a command"`
	AbortOnError *bool             `json:"abortOnError,omitempty" description:"stop after the first command with status <> 0"`
}

func (i *Input) Init() {
	if i.Host == nil {
		i.Host = &Host{}
	}
	if i.Host.URL == "" {
		i.Host.URL = "bash://localhost/"
	}
}
