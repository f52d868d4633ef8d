package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"user-record-service/internal/core/domain"
)

// End-to-End Tests - Real World Scenarios
func TestE2E_AliceScenario(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			router := setupTestRouter(t, backend)

			// Create alice
			rr := sendJSON(router, "POST", "/users", domain.UserRequest{Username: "alice", Name: "Alice A", Email: "alice@x.com"})
			if rr.Code != http.StatusOK {
				t.Fatalf("Failed to create alice: %d, body: %s", rr.Code, rr.Body.String())
			}
			var alice domain.User
			json.Unmarshal(rr.Body.Bytes(), &alice)
			if alice.ID == "" {
				t.Fatal("Expected alice to get an id")
			}

			// Creating alice again fails
			rr = sendJSON(router, "POST", "/users", domain.UserRequest{Username: "alice", Name: "Alice A", Email: "alice@x.com"})
			if rr.Code != http.StatusBadRequest {
				t.Errorf("Expected duplicate create to fail with 400, got %d", rr.Code)
			}

			// bob does not exist
			rr = sendJSON(router, "GET", "/users/username/bob", nil)
			if rr.Code != http.StatusNotFound {
				t.Errorf("Expected 404 for bob, got %d", rr.Code)
			}

			// Change alice's email
			rr = sendJSON(router, "POST", "/users/id/"+alice.ID, domain.UserRequest{Username: "alice", Name: "Alice A", Email: "alice2@x.com"})
			if rr.Code != http.StatusOK {
				t.Fatalf("Failed to update alice: %d", rr.Code)
			}

			rr = sendJSON(router, "GET", "/users/id/"+alice.ID, nil)
			var got domain.User
			json.Unmarshal(rr.Body.Bytes(), &got)
			want := domain.User{ID: alice.ID, Username: "alice", Name: "Alice A", Email: "alice2@x.com"}
			if got != want {
				t.Errorf("Expected %+v, got %+v", want, got)
			}
		})
	}
}

func TestE2E_ConcurrentSignups(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			router := setupTestRouter(t, backend)

			const attempts = 10
			var wg sync.WaitGroup
			codes := make([]int, attempts)
			for i := 0; i < attempts; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					rr := sendJSON(router, "POST", "/users", domain.UserRequest{
						Username: "popular",
						Name:     fmt.Sprintf("Popular %d", i),
						Email:    fmt.Sprintf("popular%d@x.com", i),
					})
					codes[i] = rr.Code
				}(i)
			}
			wg.Wait()

			created := 0
			for _, code := range codes {
				switch code {
				case http.StatusOK:
					created++
				case http.StatusBadRequest:
				default:
					t.Errorf("Unexpected status %d", code)
				}
			}
			if created != 1 {
				t.Errorf("Expected exactly one signup to succeed, got %d", created)
			}

			rr := sendJSON(router, "GET", "/attributes?name=username&value=popular", nil)
			var response map[string]interface{}
			json.Unmarshal(rr.Body.Bytes(), &response)
			if count := int(response["count"].(float64)); count != 1 {
				t.Errorf("Expected one stored username, got %d", count)
			}
		})
	}
}
