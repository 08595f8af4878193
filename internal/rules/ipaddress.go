package rules

import (
	"net"
	"strings"
)

// ipAddressRule restricts access to a list of subnets: full IPs,
// CIDR blocks, or dotted prefixes like "192.168.".
type ipAddressRule struct {
	BaseRule
	subnets  []string
	clientIP string
}

func NewIPAddressRule(rc RuleContext) Rule {
	if strings.TrimSpace(rc.Settings.SubnetRestriction) == "" {
		return nil
	}
	var subnets []string
	for _, s := range strings.Split(rc.Settings.SubnetRestriction, ",") {
		if s = strings.TrimSpace(s); s != "" {
			subnets = append(subnets, s)
		}
	}
	return &ipAddressRule{
		BaseRule: BaseRule{rc: rc},
		subnets:  subnets,
		clientIP: rc.ClientIP,
	}
}

func (r *ipAddressRule) Description() string {
	return "This quiz is only available from certain locations"
}

func (r *ipAddressRule) PreventAccess() string {
	if addressInSubnets(r.clientIP, r.subnets) {
		return ""
	}
	return "This quiz is not available from your current network location"
}

func addressInSubnets(address string, subnets []string) bool {
	ip := net.ParseIP(address)
	if ip == nil {
		return false
	}

	for _, subnet := range subnets {
		if strings.Contains(subnet, "/") {
			if _, network, err := net.ParseCIDR(subnet); err == nil && network.Contains(ip) {
				return true
			}
			continue
		}
		if exact := net.ParseIP(subnet); exact != nil {
			if exact.Equal(ip) {
				return true
			}
			continue
		}
		// Dotted prefix match, e.g. "10.0." matches 10.0.x.y.
		if strings.HasPrefix(address, subnet) {
			return true
		}
	}
	return false
}
