package analysis

import "strconv"

var commonPorts = map[int]string{
	53:    "DNS",
	80:    "HTTP",
	123:   "NTP",
	443:   "HTTPS",
	3074:  "XBL",
	3478:  "STUN",
	5060:  "SIP",
	5062:  "SIP-TLS",
	8080:  "HTTP-Alt",
	27015: "Steam",
}

// GetServiceName returns the common name for a port, or the port number as a string.
func GetServiceName(port int) string {
	if port <= 0 {
		return "-"
	}
	if name, ok := commonPorts[port]; ok {
		return name
	}
	return strconv.Itoa(port)
}
