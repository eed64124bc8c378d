package api

import (
	"net"
	"net/http"
	"strings"
)

type statusResponse struct {
	OK          bool   `json:"ok"`
	IP          string `json:"ip"`
	ShotPort    int    `json:"shotPort"`
	TMShots     int    `json:"tmShots"`
	Ready       bool   `json:"ready"`
	PushClients int    `json:"pushClients"`
}

// HandleStatus handles GET /api/status.
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	resp := statusResponse{
		OK:       true,
		IP:       s.localIP(),
		ShotPort: s.shotPort,
		TMShots:  s.deps.ReferenceCount(),
		Ready:    s.deps.Ready(),
	}
	if s.push != nil {
		resp.PushClients = s.push.ClientCount()
	}
	writeJSON(w, http.StatusOK, resp)
}

// localIPv4 returns the first non-loopback IPv4 address, for pointing the
// launch-monitor connector at this host.
func localIPv4() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "127.0.0.1"
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			if ip4 := ipnet.IP.To4(); ip4 != nil {
				return ip4.String()
			}
		}
	}
	return "127.0.0.1"
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
