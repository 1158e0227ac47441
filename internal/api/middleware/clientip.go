// clientip.go — адрес клиента для allow-list, аудита и viewed_ip.
package middleware

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIP возвращает адрес клиента из r.RemoteAddr без порта.
// Если перед сервисом стоит доверенный прокси, RemoteAddr уже переписан TrustedProxyIP.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// TrustedProxyIP переписывает r.RemoteAddr адресом клиента из X-Forwarded-For.
// Заголовок учитывается только если соединение пришло от доверенного прокси.
// Цепочка просматривается справа налево: первый адрес не из trusted и есть клиент.
// Левые звенья клиент может подставить сам, поэтому первое звено не используется.
func TrustedProxyIP(trusted []netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ip, ok := resolveForwarded(r.RemoteAddr, r.Header.Values("X-Forwarded-For"), trusted); ok {
				r.RemoteAddr = net.JoinHostPort(ip.String(), "0")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// resolveForwarded возвращает адрес клиента и true, если его нужно подставить вместо RemoteAddr.
func resolveForwarded(remoteAddr string, forwarded []string, trusted []netip.Prefix) (netip.Addr, bool) {
	if len(trusted) == 0 || len(forwarded) == 0 {
		return netip.Addr{}, false
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	peer, err := netip.ParseAddr(host)
	if err != nil || !isTrusted(peer.Unmap(), trusted) {
		return netip.Addr{}, false
	}

	var hops []string
	for _, v := range forwarded {
		hops = append(hops, strings.Split(v, ",")...)
	}

	client := peer.Unmap()
	for i := len(hops) - 1; i >= 0; i-- {
		addr, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
		if err != nil {
			// Битое звено: дальше цепочке верить нельзя
			break
		}
		client = addr.Unmap()
		if !isTrusted(client, trusted) {
			break
		}
	}
	return client, true
}

func isTrusted(addr netip.Addr, trusted []netip.Prefix) bool {
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
