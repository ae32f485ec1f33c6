// Copyright 2026 abouchard11
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

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
)

func leasesBaseURL() string {
	if u := os.Getenv("SERVICE_LEASES_URL"); u != "" {
		return u
	}
	return "http://localhost:8080"
}

func tasksBaseURL() string {
	if u := os.Getenv("TASK_SERVICE_URL"); u != "" {
		return u
	}
	return "http://localhost:8081"
}

func newClient(baseURL string) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetHeader("Content-Type", "application/json")
}

func printJSON(v interface{}) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}

func runLeases(state string) {
	var out []map[string]interface{}
	resp, err := newClient(leasesBaseURL()).R().
		SetQueryParam("state", state).
		SetResult(&out).
		Get("/leases")
	if err != nil {
		fmt.Fprintf(os.Stderr, "请求失败: %v\n", err)
		os.Exit(1)
	}
	if resp.StatusCode() != http.StatusOK {
		fmt.Fprintf(os.Stderr, "GET /leases: %s\n", resp.String())
		os.Exit(1)
	}
	printJSON(out)
}

func runTasks(filter string) {
	path := "/tasks"
	if filter != "" {
		path = "/tasks/" + filter
	}
	var out []map[string]interface{}
	resp, err := newClient(tasksBaseURL()).R().
		SetResult(&out).
		Get(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "请求失败: %v\n", err)
		os.Exit(1)
	}
	if resp.StatusCode() != http.StatusOK {
		fmt.Fprintf(os.Stderr, "GET %s: %s\n", path, resp.String())
		os.Exit(1)
	}
	printJSON(out)
}

func runTask(id string) {
	var out map[string]interface{}
	resp, err := newClient(tasksBaseURL()).R().
		SetResult(&out).
		Get("/tasks/" + id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "请求失败: %v\n", err)
		os.Exit(1)
	}
	if resp.StatusCode() != http.StatusOK {
		fmt.Fprintf(os.Stderr, "GET /tasks/%s: %s\n", id, resp.String())
		os.Exit(1)
	}
	printJSON(out)
}

func runHealth() {
	for name, base := range map[string]string{"leases": leasesBaseURL(), "tasks": tasksBaseURL()} {
		var out map[string]interface{}
		resp, err := newClient(base).R().SetResult(&out).Get("/healthz")
		if err != nil || resp.StatusCode() != http.StatusOK {
			fmt.Printf("%s: unreachable (%v)\n", name, err)
			continue
		}
		fmt.Printf("%s: %v\n", name, out["status"])
	}
}
