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

// 运维 CLI：查看租约与任务状态
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}
	cmd := os.Args[1]
	args := os.Args[2:]
	switch cmd {
	case "version":
		fmt.Println("betting-coordinator cli 1.0.0")
	case "leases":
		state := "all"
		if len(args) > 0 {
			state = args[0]
		}
		runLeases(state)
	case "tasks":
		if len(args) > 0 {
			runTask(args[0])
		} else {
			runTasks("")
		}
	case "started":
		runTasks("started")
	case "processed":
		runTasks("processed")
	case "health":
		runHealth()
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Usage:
  cli leases [all|active|expired|released|renewed]   列出租约
  cli tasks [id]                                     列出/查看任务
  cli started                                        进行中的任务
  cli processed                                      已完成的任务
  cli health                                         两个服务的健康状态

环境变量: SERVICE_LEASES_URL（默认 http://localhost:8080）
          TASK_SERVICE_URL（默认 http://localhost:8081）`)
}
