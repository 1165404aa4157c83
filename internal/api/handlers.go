// 包 api：集中注册 HTTP API 路由以解耦主入口，便于后续扩展与替换
package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"geofence/internal/fixed"
	"geofence/internal/geofence"
	"geofence/internal/locate"
	"geofence/internal/middleware"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// maxBody：注册请求体上限
const maxBody = 8 << 20

var (
	errBadRequest      = errors.New("bad request")
	errLocatorDisabled = errors.New("ip geolocation is not configured")
)

type registerResult struct {
	ID   geofence.ID `json:"id"`
	Cost uint64      `json:"cost"`
}

type summary struct {
	ID   geofence.ID `json:"id"`
	Name string      `json:"name,omitempty"`
	Kind string      `json:"kind"`
	Cost uint64      `json:"cost"`
}

type detail struct {
	summary
	Metadata     geofence.Metadata `json:"metadata"`
	RegisteredAt time.Time         `json:"registered_at"`
	Geometry     json.RawMessage   `json:"geometry"`
}

// 文档注释：判定结果（对外）
// 约束：坐标以精确十进制字符串返回，即实际参与判定的定点值
type containsResult struct {
	ID             geofence.ID             `json:"id"`
	X              string                  `json:"x"`
	Y              string                  `json:"y"`
	Classification geofence.Classification `json:"classification"`
	Contains       bool                    `json:"contains"`
	Policy         geofence.BoundaryPolicy `json:"policy"`
}

type locateResult struct {
	containsResult
	IP       string          `json:"ip"`
	Location locate.Location `json:"location"`
}

// BuildRoutes：构建并返回 API 路由，由主入口挂载到 API_BASE 前缀
func BuildRoutes(s *Service) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /geofences", func(w http.ResponseWriter, r *http.Request) {
		fs, err := geofence.DecodeFeatures(http.MaxBytesReader(w, r.Body, maxBody), s.opts.Decode)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if len(fs) != 1 {
			writeError(w, r, errors.Wrapf(geofence.ErrInvalidGeometry, "expected one geometry, got %d", len(fs)))
			return
		}
		meta := fs[0].Metadata
		if name := r.URL.Query().Get("name"); name != "" {
			meta["name"] = name
		}
		id, err := s.Register(r.Context(), fs[0].Geometry, meta)
		if err != nil {
			writeError(w, r, err)
			return
		}
		zerolog.Ctx(r.Context()).Info().Uint64("id", uint64(id)).Str("name", meta.Name()).Msg("geofence_created")
		writeJSON(w, http.StatusCreated, registerResult{ID: id, Cost: fs[0].Geometry.Cost()})
	})

	mux.HandleFunc("GET /geofences", func(w http.ResponseWriter, r *http.Request) {
		out := make([]summary, 0, s.reg.Len())
		for _, id := range s.reg.IDs() {
			rec, err := s.reg.Get(id)
			if err != nil {
				// 列举期间被退役
				continue
			}
			out = append(out, summarize(rec))
		}
		writeJSON(w, http.StatusOK, map[string]any{"geofences": out})
	})

	mux.HandleFunc("GET /geofences/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		rec, err := s.reg.Get(id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		g, err := geofence.EncodeGeometry(rec.Geometry)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, detail{summary: summarize(rec), Metadata: rec.Metadata, RegisteredAt: rec.RegisteredAt, Geometry: g})
	})

	mux.HandleFunc("DELETE /geofences/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := s.Remove(r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}
		zerolog.Ctx(r.Context()).Info().Uint64("id", uint64(id)).Msg("geofence_retired")
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /geofences/{id}/contains", func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		policy, err := queryPolicy(r, s.opts.Policy)
		if err != nil {
			writeError(w, r, err)
			return
		}
		q := r.URL.Query()
		if q.Get("x") == "" || q.Get("y") == "" {
			writeError(w, r, errors.Wrap(errBadRequest, "x and y are required"))
			return
		}
		pt, err := geofence.ParseCoordinate(q.Get("x"), q.Get("y"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		c, err := s.Query(r.Context(), id, pt)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result(id, pt, c, policy))
	})

	mux.HandleFunc("GET /geofences/{id}/locate-ip", func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		policy, err := queryPolicy(r, s.opts.Policy)
		if err != nil {
			writeError(w, r, err)
			return
		}
		ip := r.URL.Query().Get("ip")
		if ip == "" {
			ip = middleware.ClientIPFrom(r.Context())
		}
		loc, c, err := s.LocateIP(r.Context(), id, ip)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, locateResult{containsResult: result(id, loc.Point, c, policy), IP: ip, Location: loc})
	})

	mux.HandleFunc("GET /stats", func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Stats == nil {
			writeJSON(w, http.StatusOK, map[string]any{"geofences": s.reg.Len()})
			return
		}
		t := s.totals(r.Context())
		writeJSON(w, http.StatusOK, map[string]any{"geofences": s.reg.Len(), "total": t.Total, "today": t.Today, "hits": t.Hits})
	})

	return mux
}

func summarize(rec geofence.Record) summary {
	return summary{ID: rec.ID, Name: rec.Metadata.Name(), Kind: rec.Geometry.Kind(), Cost: rec.Geometry.Cost()}
}

func result(id geofence.ID, pt geofence.Coordinate, c geofence.Classification, p geofence.BoundaryPolicy) containsResult {
	return containsResult{ID: id, X: pt.X.String(), Y: pt.Y.String(), Classification: c, Contains: p.Contains(c), Policy: p}
}

func pathID(r *http.Request) (geofence.ID, error) {
	n, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(errBadRequest, "invalid id %q", r.PathValue("id"))
	}
	return geofence.ID(n), nil
}

// queryPolicy：boundary 参数可覆盖服务默认策略
func queryPolicy(r *http.Request, def geofence.BoundaryPolicy) (geofence.BoundaryPolicy, error) {
	v := r.URL.Query().Get("boundary")
	if v == "" {
		return def, nil
	}
	var p geofence.BoundaryPolicy
	if err := p.UnmarshalText([]byte(v)); err != nil {
		return def, errors.Wrap(errBadRequest, err.Error())
	}
	return p, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusOf：错误到 HTTP 状态码的映射
func statusOf(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, geofence.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, geofence.ErrInvalidGeometry), errors.Is(err, geofence.ErrRange), errors.Is(err, locate.ErrNoLocation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errBadRequest), errors.Is(err, fixed.ErrSyntax), errors.Is(err, locate.ErrBadIP):
		return http.StatusBadRequest
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errLocatorDisabled):
		return http.StatusNotImplemented
	}
	// 请求体不是合法 JSON
	var syn *json.SyntaxError
	var typ *json.UnmarshalTypeError
	if errors.As(err, &syn) || errors.As(err, &typ) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	ev := zerolog.Ctx(r.Context()).Debug()
	if status >= http.StatusInternalServerError && status != http.StatusNotImplemented {
		ev = zerolog.Ctx(r.Context()).Error()
	}
	ev.Err(err).Int("status", status).Str("path", r.URL.Path).Msg("api_error")
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
