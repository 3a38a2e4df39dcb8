// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package callback

// State is a step of the callback.  Steps run in order and each can fail.
type State int

const (
	StateStart State = iota
	StateEnabledCheck
	StateCodePresent
	StateStateValidated
	StateTokenExchanged
	StateClaimsFetched
	StatePreValidated
	StateUserResolved
	StateLoggedIn
)

var stateNames = map[State]string{
	StateStart:          "start",
	StateEnabledCheck:   "enabled_check",
	StateCodePresent:    "code_present",
	StateStateValidated: "state_validated",
	StateTokenExchanged: "token_exchanged",
	StateClaimsFetched:  "claims_fetched",
	StatePreValidated:   "pre_validated",
	StateUserResolved:   "user_resolved",
	StateLoggedIn:       "logged_in",
}

// String returns the state's metric label
func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}
