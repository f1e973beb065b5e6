package main

import (
	"fmt"
	"net"
	"strconv"
)

func parsePort(arg string) (uint16, error) {
	port, err := strconv.ParseUint(arg, 10, 16)
	if err != nil || port == 0 {
		return 0, fmt.Errorf("invalid port %q: must be a number between 1 and 65535", arg)
	}
	return uint16(port), nil
}

func parseIPv4(arg string) (net.IP, error) {
	ip := net.ParseIP(arg).To4()
	if ip == nil {
		return nil, fmt.Errorf("invalid address %q: must be a dotted IPv4 address", arg)
	}
	return ip, nil
}
