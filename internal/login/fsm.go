// Package login implements the authentication state machine a
// session walks through before its line input is handed to the
// command pipeline. The FSM holds no connection state, so the engine
// tick loop drives it as a plain value instead of the FSM owning the
// socket directly.
package login

import (
	"fmt"
	"strings"

	"ambonmud/internal/events"
	"ambonmud/internal/ids"
)

// State tags where a session sits in the login flow.
type State int

const (
	StateAwaitingLogin State = iota
	StateAwaitingPassword
	StateAwaitingCreateConfirmation
	StateAwaitingNewPassword
	StateAwaitingRaceSelection
	StateAwaitingClassSelection
	StateAwaitingMFAEnrollChoice
	StateAwaitingMFASetupAck
	StateAwaitingMFA
	StateAuthenticated
	StateRejected
)

// Password length bounds enforced before hashing. bcrypt silently
// truncates beyond 72 bytes, so 72 is the real ceiling here, not an
// arbitrary choice.
const (
	minPasswordLen = 4
	maxPasswordLen = 72
)

// knownRaces/knownClasses are the minimal closed sets a fresh
// character picks from during creation. World content (race/class
// flavor, stat bonuses) lives outside the core; the
// core only needs to validate the token and hand the choice onward.
var knownRaces = []string{"human", "elf", "dwarf", "orc"}
var knownClasses = []string{"warrior", "mage", "rogue", "cleric"}

func isKnown(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// Authenticator is the credential and MFA backend the FSM calls into;
// the engine wires in an implementation backed by internal/persistence
// and golang.org/x/crypto/bcrypt / pquerna/otp.
type Authenticator interface {
	CheckPassword(username, password string) (bool, error)
	AccountExists(username string) (bool, error)
	MFAEnabled(username string) (bool, error)
	CheckMFA(username, code string) (bool, error)
	EnrollMFA(username string) (secretURI string, err error)
}

// FSM drives one session's login flow. It holds no network state —
// the engine reads Outbound events from Handle's return value and
// writes them to the session's connection via the normal outbound
// queue. Account creation only collects and validates the new
// account's fields (password, race, class); the engine performs the
// actual persistence Create() call once Authenticated() reports a new
// account, since this package has no dependency on internal/player or
// internal/world.
type FSM struct {
	auth Authenticator

	session        ids.SessionID
	state          State
	username       string
	failedAttempts int
	maxAttempts    int
	mfaRequired    bool

	isNewAccount bool
	newPassword  string
	newRace      string
	newClass     string
}

// NewFSM starts a fresh login flow for session, prompting for a
// username first.
func NewFSM(session ids.SessionID, auth Authenticator, maxWrongPasswordRetries int) *FSM {
	return &FSM{
		auth:        auth,
		session:     session,
		state:       StateAwaitingLogin,
		maxAttempts: maxWrongPasswordRetries,
	}
}

// State reports the FSM's current step, for engine bookkeeping
// (e.g. counting concurrent logins-in-progress against a config cap).
func (f *FSM) State() State { return f.state }

// Authenticated reports whether the flow finished successfully, and
// if so, the account name to load.
func (f *FSM) Authenticated() (string, bool) {
	if f.state == StateAuthenticated {
		return f.username, true
	}
	return "", false
}

// NewAccountDetails reports the collected creation fields when
// Authenticated() returns true for a brand-new account. The plaintext
// password is handed back once, for the engine to bcrypt-hash and
// persist; the FSM itself never stores a hash.
func (f *FSM) NewAccountDetails() (isNew bool, password, race, class string) {
	return f.isNewAccount, f.newPassword, f.newRace, f.newClass
}

// Prompt returns the events a freshly constructed FSM should emit
// before any input arrives.
func (f *FSM) Prompt() []events.Outbound {
	return []events.Outbound{events.SendInfo(f.session, "Login: ")}
}

// Handle advances the FSM by one line of input, returning the events
// to render and whether the session should be closed (too many
// failures).
func (f *FSM) Handle(line string) ([]events.Outbound, bool) {
	switch f.state {
	case StateAwaitingLogin:
		return f.handleLogin(line)
	case StateAwaitingPassword:
		return f.handlePassword(line)
	case StateAwaitingCreateConfirmation:
		return f.handleCreateConfirmation(line)
	case StateAwaitingNewPassword:
		return f.handleNewPassword(line)
	case StateAwaitingRaceSelection:
		return f.handleRaceSelection(line)
	case StateAwaitingClassSelection:
		return f.handleClassSelection(line)
	case StateAwaitingMFAEnrollChoice:
		return f.handleMFAEnrollChoice(line)
	case StateAwaitingMFA:
		return f.handleMFA(line)
	default:
		return []events.Outbound{events.SendError(f.session, "Login has already completed.")}, false
	}
}

func (f *FSM) handleLogin(username string) ([]events.Outbound, bool) {
	if username == "" {
		return []events.Outbound{events.SendInfo(f.session, "Login cannot be empty.\nLogin: ")}, false
	}
	if !validName(username) {
		return []events.Outbound{events.SendInfo(f.session, "Names are 2-16 alphanumeric/underscore characters, not starting with a digit.\nLogin: ")}, false
	}

	exists, err := f.auth.AccountExists(username)
	if err != nil {
		return []events.Outbound{events.SendError(f.session, "Account lookup failed, try again.")}, false
	}
	f.username = username
	if !exists {
		f.state = StateAwaitingCreateConfirmation
		return []events.Outbound{events.SendInfo(f.session, fmt.Sprintf("No account named %q. Create one? (y/n): ", username))}, false
	}

	f.state = StateAwaitingPassword
	return []events.Outbound{events.SendInfo(f.session, "Password: "), events.SetAnsi(f.session, false)}, false
}

// validName enforces the account-name invariant: 2-16 chars,
// alphanumeric + underscore, not leading digit.
func validName(name string) bool {
	if len(name) < 2 || len(name) > 16 {
		return false
	}
	if name[0] >= '0' && name[0] <= '9' {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
		default:
			return false
		}
	}
	return true
}

func (f *FSM) handlePassword(password string) ([]events.Outbound, bool) {
	if password == "" {
		return []events.Outbound{events.SendInfo(f.session, "Password cannot be empty.\nPassword: ")}, false
	}

	ok, err := f.auth.CheckPassword(f.username, password)
	if err != nil || !ok {
		return f.rejectAttempt("Invalid credentials.", func() ([]events.Outbound, bool) {
			f.state = StateAwaitingLogin
			f.username = ""
			return []events.Outbound{events.SendInfo(f.session, "Login: ")}, false
		})
	}

	mfaOn, err := f.auth.MFAEnabled(f.username)
	if err != nil {
		return []events.Outbound{events.SendError(f.session, "Account lookup failed, try again.")}, false
	}
	f.mfaRequired = mfaOn
	f.failedAttempts = 0

	if !mfaOn {
		return f.enrollOrFinish()
	}

	f.state = StateAwaitingMFA
	return []events.Outbound{events.SendInfo(f.session, "MFA Code: ")}, false
}

func (f *FSM) handleCreateConfirmation(answer string) ([]events.Outbound, bool) {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		f.state = StateAwaitingNewPassword
		return []events.Outbound{events.SendInfo(f.session, "Choose a password: "), events.SetAnsi(f.session, false)}, false
	default:
		f.state = StateAwaitingLogin
		f.username = ""
		return []events.Outbound{events.SendInfo(f.session, "Login: ")}, false
	}
}

func (f *FSM) handleNewPassword(password string) ([]events.Outbound, bool) {
	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		return []events.Outbound{events.SendInfo(f.session, fmt.Sprintf("Password must be %d-%d characters.\nChoose a password: ", minPasswordLen, maxPasswordLen))}, false
	}
	f.newPassword = password
	f.state = StateAwaitingRaceSelection
	return []events.Outbound{events.SendInfo(f.session, fmt.Sprintf("Choose a race (%s): ", strings.Join(knownRaces, ", "))), events.SetAnsi(f.session, true)}, false
}

func (f *FSM) handleRaceSelection(race string) ([]events.Outbound, bool) {
	race = strings.ToLower(strings.TrimSpace(race))
	if !isKnown(knownRaces, race) {
		return []events.Outbound{events.SendInfo(f.session, fmt.Sprintf("Unknown race. Choose one of %s: ", strings.Join(knownRaces, ", ")))}, false
	}
	f.newRace = race
	f.state = StateAwaitingClassSelection
	return []events.Outbound{events.SendInfo(f.session, fmt.Sprintf("Choose a class (%s): ", strings.Join(knownClasses, ", ")))}, false
}

func (f *FSM) handleClassSelection(class string) ([]events.Outbound, bool) {
	class = strings.ToLower(strings.TrimSpace(class))
	if !isKnown(knownClasses, class) {
		return []events.Outbound{events.SendInfo(f.session, fmt.Sprintf("Unknown class. Choose one of %s: ", strings.Join(knownClasses, ", ")))}, false
	}
	f.newClass = class
	f.isNewAccount = true
	f.failedAttempts = 0
	return f.finish(fmt.Sprintf("Welcome to AmbonMUD, %s!", f.username))
}

// enrollOrFinish offers MFA enrollment on every login of an account
// without MFA; declining simply finishes the login.
func (f *FSM) enrollOrFinish() ([]events.Outbound, bool) {
	f.state = StateAwaitingMFAEnrollChoice
	return []events.Outbound{events.SendInfo(f.session, "Enable two-factor authentication for this account? (y/n): ")}, false
}

func (f *FSM) handleMFAEnrollChoice(answer string) ([]events.Outbound, bool) {
	switch answer {
	case "y", "yes":
		uri, err := f.auth.EnrollMFA(f.username)
		if err != nil {
			return f.finish(fmt.Sprintf("Could not enroll MFA (%v); continuing without it.", err))
		}
		f.state = StateAuthenticated
		return []events.Outbound{
			events.SendInfo(f.session, "Scan this into your authenticator app: "+uri),
			events.SendInfo(f.session, fmt.Sprintf("Welcome back, %s!", f.username)),
		}, false
	default:
		return f.finish(fmt.Sprintf("Welcome back, %s!", f.username))
	}
}

func (f *FSM) handleMFA(code string) ([]events.Outbound, bool) {
	if code == "" {
		return []events.Outbound{events.SendInfo(f.session, "MFA code cannot be empty.\nMFA Code: ")}, false
	}

	ok, err := f.auth.CheckMFA(f.username, code)
	if err != nil || !ok {
		return f.rejectAttempt("Invalid MFA code.", func() ([]events.Outbound, bool) {
			return []events.Outbound{events.SendInfo(f.session, "MFA Code: ")}, false
		})
	}

	return f.finish(fmt.Sprintf("Welcome back, %s!", f.username))
}

func (f *FSM) finish(welcome string) ([]events.Outbound, bool) {
	f.state = StateAuthenticated
	return []events.Outbound{events.SendInfo(f.session, welcome)}, false
}

// rejectAttempt bumps the failure counter and either disconnects the
// session once the attempt budget is spent, or retries
// via onRetry.
func (f *FSM) rejectAttempt(message string, onRetry func() ([]events.Outbound, bool)) ([]events.Outbound, bool) {
	f.failedAttempts++
	if f.failedAttempts >= f.maxAttempts {
		f.state = StateRejected
		return []events.Outbound{events.Close(f.session, "too_many_failed_attempts")}, true
	}
	remaining := f.maxAttempts - f.failedAttempts
	out, close := onRetry()
	prefix := events.SendInfo(f.session, fmt.Sprintf("%s Attempts remaining: %d", message, remaining))
	return append([]events.Outbound{prefix}, out...), close
}
