package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/forbearing/kvboot/metrics"
	"github.com/forbearing/kvboot/status"
	"github.com/forbearing/kvboot/store"
	"github.com/forbearing/kvboot/types"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type service struct {
	s types.Store
}

type JoinReq struct {
	ID   string `json:"id"`
	Addr string `json:"addr"`
}
type SetReq map[string]string

func newRouter(s types.Store, rpcPath string) *gin.Engine {
	r := gin.Default()
	svc := &service{s}

	r.POST("/store", svc.Set)
	r.GET("/store/:key", svc.Get)
	r.POST("/join", svc.Join)
	r.GET("/status", svc.Status)
	r.POST(rpcPath, svc.RPC)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

func (s *service) Set(c *gin.Context) {
	req := SetReq{}
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.Error(err)
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	for k, v := range req {
		if err := s.s.Set(k, v); err != nil {
			logrus.Errorf("set %s: %v", k, err)
			code := http.StatusInternalServerError
			if errors.Is(err, store.ErrNotLeader) {
				code = http.StatusConflict
			}
			c.String(code, err.Error())
			return
		}
	}

	c.String(http.StatusOK, "ok")
}

func (s *service) Get(c *gin.Context) {
	key := c.Param("key")
	v, err := s.s.Get(key)
	if errors.Is(err, store.ErrNotFound) {
		c.String(http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		logrus.Error(err)
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	c.String(http.StatusOK, v)
}

func (s *service) Join(c *gin.Context) {
	req := new(JoinReq)
	if err := c.ShouldBindJSON(req); err != nil {
		logrus.Error(err)
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	if req.Addr == "" {
		c.String(http.StatusBadRequest, "addr is required")
		return
	}
	if req.ID == "" {
		req.ID = req.Addr
	}

	if err := s.s.Join(req.ID, req.Addr); err != nil {
		logrus.Error(err)
		c.String(http.StatusInternalServerError, err.Error())
		return
	}

	c.String(http.StatusOK, "ok")
}

func (s *service) Status(c *gin.Context) {
	st, err := s.s.Status()
	if err != nil {
		logrus.Error(err)
		c.String(http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, st)
}

// RPC answers JSON-RPC status calls. Errors are reported in the envelope
// with HTTP 200, like the yaws endpoint it stands in for.
func (s *service) RPC(c *gin.Context) {
	var req status.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.RPCServed.WithLabelValues("", "error").Inc()
		c.JSON(http.StatusOK, status.Response{
			JSONRPC: "2.0",
			Error:   &status.RPCError{Code: status.CodeParseError, Message: err.Error()},
		})
		return
	}

	var method func() (map[string]any, error)
	switch req.Method {
	case status.MethodGetNodeInfo:
		method = s.nodeInfo
	case status.MethodGetNodePerformance:
		method = s.nodePerformance
	case status.MethodGetServiceInfo:
		method = s.serviceInfo
	case status.MethodGetServicePerformance:
		method = s.servicePerformance
	default:
		metrics.RPCServed.WithLabelValues("unknown", "error").Inc()
		c.JSON(http.StatusOK, status.Response{
			JSONRPC: "2.0",
			Error:   &status.RPCError{Code: status.CodeMethodNotFound, Message: "method not found: " + req.Method},
			ID:      req.ID,
		})
		return
	}

	value, err := method()
	if err != nil {
		logrus.Errorf("rpc %s: %v", req.Method, err)
		metrics.RPCServed.WithLabelValues(req.Method, "error").Inc()
		c.JSON(http.StatusOK, status.Response{
			JSONRPC: "2.0",
			Error:   &status.RPCError{Code: status.CodeInternalError, Message: err.Error()},
			ID:      req.ID,
		})
		return
	}

	metrics.RPCServed.WithLabelValues(req.Method, "ok").Inc()
	c.JSON(http.StatusOK, status.Response{
		JSONRPC: "2.0",
		Result:  &status.Result{Status: "ok", Value: value},
		ID:      req.ID,
	})
}

func (s *service) nodeInfo() (map[string]any, error) {
	st, err := s.s.Status()
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"node":   st.Me,
		"leader": st.Leader,
		"state":  s.s.Stats()["state"],
		"keys":   s.s.Len(),
	}, nil
}

func (s *service) nodePerformance() (map[string]any, error) {
	stats := s.s.Stats()
	value := make(map[string]any, len(stats)+1)
	for k, v := range stats {
		value[k] = v
	}
	value["keys"] = s.s.Len()
	return value, nil
}

func (s *service) serviceInfo() (map[string]any, error) {
	st, err := s.s.Status()
	if err != nil {
		return nil, err
	}
	members := st.Followers
	if st.Leader.ID != "" {
		members = append([]types.Node{st.Leader}, st.Followers...)
	}
	return map[string]any{
		"leader":  st.Leader,
		"members": members,
		"nodes":   len(members),
	}, nil
}

func (s *service) servicePerformance() (map[string]any, error) {
	stats := s.s.Stats()
	value := map[string]any{"keys": s.s.Len()}
	for _, k := range []string{"term", "commit_index", "applied_index", "last_contact"} {
		if v, ok := stats[k]; ok {
			if n, err := strconv.ParseUint(v, 10, 64); err == nil {
				value[k] = n
			} else {
				value[k] = v
			}
		}
	}
	if v, ok := stats["num_peers"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			value["nodes"] = n + 1
		}
	}
	return value, nil
}
