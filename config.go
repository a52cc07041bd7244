/*
MIT License

Copyright (c) 2026 netssh contributors

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package netssh

import (
	"fmt"
	"net"
	"os"
	"regexp"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/trzsz/ssh_config"
)

// KeepaliveKind selects how the session coordinator keeps an idle
// connection alive: "network" writes a no-op byte pattern over the channel,
// "standard" uses the SSH library's native keepalive request.
type KeepaliveKind string

const (
	KeepaliveNetwork  KeepaliveKind = "network"
	KeepaliveStandard KeepaliveKind = "standard"
)

// Endpoint identifies the device to connect to.
type Endpoint struct {
	Host           string
	Port           int
	ConnectTimeout int // seconds
	ValidateHost   bool
}

// Credentials carries the primary and optional secondary authentication
// material. SecondaryPassword answers a mid-session credential challenge
// when escalating privilege (an "enable" password).
type Credentials struct {
	User              string
	Password          string
	PrivateKeyPath    string
	SecondaryPassword string

	// TOTPSecret, if set, lets the keyboard-interactive answer closure
	// generate a verification code instead of requiring the caller to read
	// one off a phone.
	TOTPSecret string

	// Kerberos, if set, authenticates via GSSAPI-with-MIC before any other
	// method is tried.
	Kerberos *KerberosCredentials

	// SSHConfigPath, if set, is parsed for a per-host block that may
	// override HostName, Port, User, and PrivateKeyPath (never Password).
	SSHConfigPath string
}

// KerberosCredentials configures GSSAPI-with-MIC authentication. Exactly
// one of KeytabPath, CCachePath, or Password supplies the credential
// material; a keytab or a kinit-populated credential cache is the usual
// choice for unattended automation.
type KerberosCredentials struct {
	Krb5ConfPath string
	Username     string
	Password     string
	KeytabPath   string
	CCachePath   string
}

func redactedString(s string) string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

// String implements fmt.Stringer so accidental %v/%s logging of Credentials
// never leaks a secret.
func (c Credentials) String() string {
	hasKey := c.PrivateKeyPath != ""
	hasKrb := c.Kerberos != nil
	return fmt.Sprintf("Credentials{User:%q Password:%s PrivateKeyPath:%v SecondaryPassword:%s Kerberos:%v}",
		c.User, redactedString(c.Password), hasKey, redactedString(c.SecondaryPassword), hasKrb)
}

// SessionOptions configures the session coordinator and keepalive loop.
type SessionOptions struct {
	ReadTimeoutMs int // 0 means block indefinitely

	KeepaliveEnabled     bool
	KeepaliveIntervalSec int
	KeepaliveKind        KeepaliveKind
	KeepalivePattern     []byte

	UseFallbackTransport bool
}

// DefaultSessionOptions returns the stock settings: 5s reads, keepalive
// off, and Ctrl-E (a cursor-motion no-op on most CLIs) as the network
// keepalive pattern.
func DefaultSessionOptions() SessionOptions {
	return SessionOptions{
		ReadTimeoutMs:        5000,
		KeepaliveEnabled:     false,
		KeepaliveIntervalSec: 10,
		KeepaliveKind:        KeepaliveNetwork,
		KeepalivePattern:     []byte{0x05},
	}
}

// PreLoginHook runs once after shell invocation, before disable-paging.
type PreLoginHook func(conn *Connection) error

// DisablePaging is either a literal command string or a callback; see
// ChannelOptions.DisablePaging.
type DisablePaging struct {
	Command  string
	Callback func(conn *Connection) error
}

// ChannelOptions configures the interactive channel engine. PromptRegex is
// the single most important value here: an incorrect pattern causes every
// read to hang until timeout.
type ChannelOptions struct {
	PromptRegex         string
	promptPattern       *regexp.Regexp // compiled eagerly, see Validate
	OperationTimeoutSec int
	ReturnChar          string
	StripAnsi           bool
	PreLoginHook        PreLoginHook
	DisablePaging       *DisablePaging
}

// DefaultChannelOptions returns settings suitable for most network CLIs:
// a generic hostname#/>/$ prompt pattern, a 10s operation budget that
// comfortably exceeds the read-retry schedule, and paging disabled via
// "terminal length 0".
func DefaultChannelOptions() ChannelOptions {
	return ChannelOptions{
		PromptRegex:         `^[a-z0-9.\-@()/:]{1,32}[#>$]$`,
		OperationTimeoutSec: 10,
		ReturnChar:          "\n",
		StripAnsi:           true,
		DisablePaging:       &DisablePaging{Command: "terminal length 0"},
	}
}

// Validate compiles the prompt regex eagerly, so a bad pattern fails at
// construction rather than hanging the first read, and range-checks the
// rest of the struct.
func (c *ChannelOptions) Validate() error {
	if c.PromptRegex == "" {
		return newError(KindValidation, nil, "promptRegex must not be empty")
	}
	pattern, err := regexp.Compile("(?mi)" + c.PromptRegex)
	if err != nil {
		return newError(KindValidation, err, "promptRegex %q does not compile", c.PromptRegex)
	}
	c.promptPattern = pattern
	if c.ReturnChar == "" {
		return newError(KindValidation, nil, "returnChar must not be empty")
	}
	if c.OperationTimeoutSec < 0 {
		return newError(KindValidation, nil, "operationTimeoutSec must not be negative")
	}
	return nil
}

func (e *Endpoint) Validate() error {
	e.Host = strings.TrimSpace(e.Host)
	if e.Host == "" {
		return newError(KindValidation, nil, "host must not be empty")
	}
	if e.ValidateHost {
		if net.ParseIP(e.Host) == nil {
			if _, err := net.LookupHost(e.Host); err != nil {
				return newError(KindValidation, err, "host %q is not an IP or resolvable DNS name", e.Host)
			}
		}
	}
	if e.Port <= 0 {
		e.Port = 22
	}
	if e.ConnectTimeout <= 0 {
		e.ConnectTimeout = 5
	}
	return nil
}

func (o *SessionOptions) Validate() error {
	if o.KeepaliveKind == "" {
		o.KeepaliveKind = KeepaliveNetwork
	}
	if o.KeepaliveKind != KeepaliveNetwork && o.KeepaliveKind != KeepaliveStandard {
		return newError(KindValidation, nil, "keepaliveKind must be %q or %q, got %q",
			KeepaliveNetwork, KeepaliveStandard, o.KeepaliveKind)
	}
	if o.KeepaliveIntervalSec <= 0 {
		o.KeepaliveIntervalSec = 10
	}
	if len(o.KeepalivePattern) == 0 {
		o.KeepalivePattern = []byte{0x05}
	}
	return nil
}

func resolveHomeDir(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	return homedir.Expand(path)
}

// loadSSHConfigFile decodes an OpenSSH-style config file.
func loadSSHConfigFile(path string) (*ssh_config.Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, newError(KindValidation, err, "open ssh config %q", path)
	}
	defer file.Close()

	cfg, err := ssh_config.Decode(file)
	if err != nil {
		return nil, newError(KindValidation, err, "decode ssh config %q", path)
	}
	return cfg, nil
}

// applySSHConfig overrides HostName, Port, User, and PrivateKeyPath from
// the per-host block of an OpenSSH-style config file. HostName and Port
// from the file replace the endpoint's values; User and PrivateKeyPath are
// filled only when not already supplied. Password is never overridden.
func applySSHConfig(host string, endpoint *Endpoint, creds *Credentials) error {
	if creds.SSHConfigPath == "" {
		return nil
	}
	path, err := resolveHomeDir(creds.SSHConfigPath)
	if err != nil {
		return newError(KindValidation, err, "resolve ssh config path %q", creds.SSHConfigPath)
	}
	cfg, err := loadSSHConfigFile(path)
	if err != nil {
		return err
	}

	if hostName, _ := cfg.Get(host, "HostName"); hostName != "" {
		endpoint.Host = hostName
	}
	if port, _ := cfg.Get(host, "Port"); port != "" {
		fmt.Sscanf(port, "%d", &endpoint.Port)
	}
	if user, _ := cfg.Get(host, "User"); user != "" && creds.User == "" {
		creds.User = user
	}
	if identity, _ := cfg.Get(host, "IdentityFile"); identity != "" && creds.PrivateKeyPath == "" {
		expanded, err := resolveHomeDir(strings.TrimSpace(identity))
		if err != nil {
			return newError(KindValidation, err, "resolve identity file %q", identity)
		}
		creds.PrivateKeyPath = expanded
	}
	return nil
}
