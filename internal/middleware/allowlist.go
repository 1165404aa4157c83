package middleware

import (
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// 文档注释：写操作白名单（IP/CIDR）
// 背景：注册与退役会改变判定结果并写库；只读查询对外开放，写操作仅允许运维网段调用。
// 约束：
//   - 只拦截非 GET/HEAD/OPTIONS 请求
//   - 未配置任何网段时不启用
//   - 来源地址默认以 RemoteAddr 为准，不读取 X-Forwarded-For 等可伪造的头
//   - 仅当部署在可信代理之后并配置了 realIPHeader 时，才采用该头中的第一个合法 IP
type WriteGuard struct {
	allow        []*net.IPNet
	realIPHeader string
}

// NewWriteGuard：解析逗号分隔的 IP 或 CIDR 列表；单 IP 视为 /32 或 /128，非法项跳过
func NewWriteGuard(list string) *WriteGuard {
	g := &WriteGuard{}
	for _, p := range strings.Split(list, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.Contains(p, "/") {
			ip := net.ParseIP(p)
			if ip == nil {
				continue
			}
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			g.allow = append(g.allow, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		if _, n, err := net.ParseCIDR(p); err == nil {
			g.allow = append(g.allow, n)
		}
	}
	return g
}

// WriteGuardFromEnv：ADMIN_ALLOW_CIDRS 指定网段；ADMIN_ALLOW_LOCAL=true 追加回环地址；
// ADMIN_REAL_IP_HEADER 指定可信代理写入的来源头（如 X-Real-IP），默认不信任任何头
func WriteGuardFromEnv() *WriteGuard {
	list := os.Getenv("ADMIN_ALLOW_CIDRS")
	if os.Getenv("ADMIN_ALLOW_LOCAL") == "true" {
		list += ",127.0.0.0/8,::1"
	}
	return NewWriteGuard(list).TrustHeader(os.Getenv("ADMIN_REAL_IP_HEADER"))
}

// TrustHeader：设置可信代理写入的来源头；空串表示只看 RemoteAddr
func (g *WriteGuard) TrustHeader(name string) *WriteGuard {
	g.realIPHeader = strings.TrimSpace(name)
	return g
}

// sourceIP：判定白名单使用的来源地址
func (g *WriteGuard) sourceIP(r *http.Request) string {
	if g.realIPHeader != "" {
		for _, p := range strings.Split(r.Header.Get(g.realIPHeader), ",") {
			if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
				return ip.String()
			}
		}
		return ""
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (g *WriteGuard) Enabled() bool { return len(g.allow) > 0 }

func (g *WriteGuard) allowed(ip net.IP) bool {
	for _, n := range g.allow {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// Wrap：拒绝白名单外的写请求（403）
func (g *WriteGuard) Wrap(next http.Handler) http.Handler {
	if !g.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}
		raw := g.sourceIP(r)
		if ip := net.ParseIP(raw); ip != nil && g.allowed(ip) {
			next.ServeHTTP(w, r)
			return
		}
		zerolog.Ctx(r.Context()).Warn().Str("ip", raw).Str("method", r.Method).Msg("write_guard_block")
		w.Header().Set("content-type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"write access denied"}` + "\n"))
	})
}
