package integration

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

// fakeTechnitium is a minimal in-memory Technitium DNS API for testing.
type fakeTechnitium struct {
	mu          sync.Mutex
	zones       map[string]bool
	records     map[string]string // hostname → address
	zoneCreates []string
	sessions    map[string]bool
	logins      int
	calls       []string // tracks endpoint calls in order
}

func newFakeTechnitium(zones ...string) *fakeTechnitium {
	f := &fakeTechnitium{zones: map[string]bool{}, records: map[string]string{}, sessions: map[string]bool{}}
	for _, z := range zones {
		f.zones[z] = true
	}
	return f
}

func (f *fakeTechnitium) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, r.URL.Path)
	q := r.URL.Query()

	switch r.URL.Path {
	case "/api/version":
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	case "/api/user/login":
		if q.Get("user") != "admin" || q.Get("pass") != "admin" {
			writeJSON(w, http.StatusOK, map[string]string{"status": "error", "errorMessage": "bad credentials"})
			return
		}
		f.logins++
		token := fmt.Sprintf("dns-session-%d", f.logins)
		f.sessions[token] = true
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "token": token})
		return
	}

	if !f.sessions[q.Get("token")] {
		writeJSON(w, http.StatusOK, map[string]string{"status": "invalid-token", "errorMessage": "session expired"})
		return
	}

	switch r.URL.Path {
	case "/api/zones/list":
		zones := []map[string]string{}
		for z := range f.zones {
			zones = append(zones, map[string]string{"name": z})
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "response": map[string]interface{}{"zones": zones}})
	case "/api/zones/create":
		f.zones[q.Get("zone")] = true
		f.zoneCreates = append(f.zoneCreates, q.Get("zone"))
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "response": map[string]string{"domain": q.Get("zone")}})
	case "/api/zones/records/add":
		if !f.zones[q.Get("zone")] {
			writeJSON(w, http.StatusOK, map[string]string{"status": "error", "errorMessage": "no such zone"})
			return
		}
		f.records[q.Get("domain")] = q.Get("ipAddress")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case "/api/zones/records/get":
		records := []map[string]interface{}{}
		if ip, ok := f.records[q.Get("domain")]; ok {
			records = append(records, map[string]interface{}{
				"name": q.Get("domain"), "type": "A", "rData": map[string]string{"ipAddress": ip},
			})
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "response": map[string]interface{}{"records": records}})
	case "/api/zones/records/delete":
		delete(f.records, q.Get("domain"))
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeTechnitium) expireSessions() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = map[string]bool{}
}

func (f *fakeTechnitium) record(hostname string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ip, ok := f.records[hostname]
	return ip, ok
}

func (f *fakeTechnitium) createdZones() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.zoneCreates...)
}

func (f *fakeTechnitium) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeNPM is a minimal in-memory Nginx Proxy Manager API for testing.
type fakeNPM struct {
	mu         sync.Mutex
	hosts      map[int]map[string]interface{}
	nextID     int
	failCreate bool
	calls      int
}

func newFakeNPM() *fakeNPM {
	return &fakeNPM{hosts: map[int]map[string]interface{}{}, nextID: 1}
}

func (f *fakeNPM) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if r.URL.Path == "/api/schema" {
		writeJSON(w, http.StatusOK, map[string]string{"openapi": "3.1.0"})
		return
	}
	if r.Header.Get("Authorization") != "Bearer npm-token" {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"error": map[string]string{"message": "unauthorized"}})
		return
	}

	switch {
	case r.URL.Path == "/api/nginx/proxy-hosts" && r.Method == http.MethodGet:
		rows := []map[string]interface{}{}
		for _, h := range f.hosts {
			rows = append(rows, h)
		}
		writeJSON(w, http.StatusOK, rows)
	case r.URL.Path == "/api/nginx/proxy-hosts" && r.Method == http.MethodPost:
		if f.failCreate {
			writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": map[string]string{"message": "nginx config test failed"}})
			return
		}
		var body map[string]interface{}
		if err := readJSON(r, &body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		id := f.nextID
		f.nextID++
		host := map[string]interface{}{
			"id":           id,
			"domain_names": body["domain_names"],
			"forward_host": body["forward_host"],
			"forward_port": body["forward_port"],
			"enabled":      1,
		}
		f.hosts[id] = host
		writeJSON(w, http.StatusCreated, host)
	case strings.HasPrefix(r.URL.Path, "/api/nginx/proxy-hosts/") && r.Method == http.MethodDelete:
		id, _ := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/api/nginx/proxy-hosts/"))
		if _, ok := f.hosts[id]; !ok {
			writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": map[string]string{"message": "not found"}})
			return
		}
		delete(f.hosts, id)
		writeJSON(w, http.StatusOK, true)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeNPM) hostFor(hostname string) (map[string]interface{}, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range f.hosts {
		if names, ok := h["domain_names"].([]interface{}); ok && len(names) > 0 && names[0] == hostname {
			return h, true
		}
	}
	return nil, false
}

func (f *fakeNPM) hostCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.hosts)
}

func (f *fakeNPM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v interface{}) error {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
