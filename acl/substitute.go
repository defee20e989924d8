package acl

import (
	"strconv"
	"strings"

	"github.com/brokerd/brokerd/types"
)

// Placeholders is the set of request-time values available for template
// substitution in auth backend configuration (request URLs, bodies,
// claim-validator values, ...).
type Placeholders struct {
	Username   string
	ClientId   string
	RemoteAddr string
	Password   string
	Protocol   byte
	AccessType types.ACLType // zero value means "no ACL type in context"
	Topic      string
}

// SubstituteHTTP replaces the HTTP auth backend's token set: %u username,
// %c client id, %a remote address, %P password, %r protocol version,
// %A ACL type code, %t topic. Unrecognized tokens are left untouched.
// When p.AccessType is zero (no ACL context, e.g. during
// ClientAuthenticate) %A and %t are substituted with the empty string,
// matching the original backend's unconditional blanking of those two
// tokens outside of an ACL check.
func SubstituteHTTP(template string, p Placeholders) string {
	aclType, topic := "", ""
	if p.AccessType != 0 {
		aclType = p.AccessType.String()
		topic = p.Topic
	}
	r := strings.NewReplacer(
		"%u", p.Username,
		"%c", p.ClientId,
		"%a", p.RemoteAddr,
		"%P", p.Password,
		"%r", strconv.Itoa(int(p.Protocol)),
		"%A", aclType,
		"%t", topic,
	)
	return r.Replace(template)
}

// SubstituteJWT replaces the JWT auth backend's token set:
// ${clientid} ${username} ${ipaddr} ${protocol}.
func SubstituteJWT(template string, p Placeholders) string {
	r := strings.NewReplacer(
		"${clientid}", p.ClientId,
		"${username}", p.Username,
		"${ipaddr}", p.RemoteAddr,
		"${protocol}", strconv.Itoa(int(p.Protocol)),
	)
	return r.Replace(template)
}
