// Copyright 2025 Alibaba Group Holding Ltd.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package netinfo finds the address other LAN devices can reach this host at
// and renders it as a QR code.
package netinfo

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"

	"github.com/jackpal/gateway"
	"github.com/mdp/qrterminal/v3"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/lanvault/lanvault/pkg/log"
)

const loopback = "127.0.0.1"

// LocalIP returns the IPv4 address of the interface facing the default
// gateway. It falls back to the source address of a UDP route to a public
// address, then to 127.0.0.1.
func LocalIP() string {
	ip, err := gatewayFacingIP()
	if err == nil {
		return ip.String()
	}
	log.Debug("gateway lookup failed, falling back to route probe: %v", err)

	ip, err = routeProbeIP()
	if err == nil {
		return ip.String()
	}
	log.Warn("could not determine LAN address, using %s: %v", loopback, err)
	return loopback
}

func gatewayFacingIP() (net.IP, error) {
	gw, err := gateway.DiscoverGateway()
	if err != nil {
		return nil, fmt.Errorf("discover gateway: %w", err)
	}

	interfaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			log.Debug("skipping interface %s: %v", iface.Name, err)
			continue
		}
		if ip := matchSubnet(gw, addrs); ip != nil {
			return ip, nil
		}
	}
	return nil, fmt.Errorf("no interface shares a subnet with gateway %s", gw)
}

// matchSubnet returns the first global unicast IPv4 address whose network
// contains gw.
func matchSubnet(gw net.IP, addrs []net.Addr) net.IP {
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		ip := ipnet.IP.To4()
		if ip == nil || !ip.IsGlobalUnicast() {
			continue
		}
		if ipnet.Contains(gw) {
			return ip
		}
	}
	return nil
}

// routeProbeIP asks the kernel which source address it would use to reach a
// public host. UDP dial sends no packets.
func routeProbeIP() (net.IP, error) {
	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP == nil || addr.IP.IsUnspecified() {
		return nil, errors.New("no usable local address")
	}
	return addr.IP, nil
}

// AccessURL is the URL announced for a listener bound to host:port. Wildcard
// hosts are replaced by LocalIP.
func AccessURL(host string, port int) string {
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = LocalIP()
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port))
}

// QRPNG encodes url as a size x size PNG.
func QRPNG(url string, size int) ([]byte, error) {
	png, err := qrcode.Encode(url, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}
	return png, nil
}

// PrintQR draws url as a half-block QR code on a terminal.
func PrintQR(w io.Writer, url string) {
	qrterminal.GenerateHalfBlock(url, qrterminal.M, w)
}
