package mcpserver

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"mlagent/internal/dataset"
	"mlagent/internal/sandbox"
)

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func newTestDeps(t *testing.T) Deps {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "iris.csv"), []byte("petal,species\n1.4,setosa\n4.7,versicolor\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	resolver, err := dataset.NewResolver(dir, "")
	if err != nil {
		t.Fatal(err)
	}
	session := sandbox.NewSession("", 0)
	t.Cleanup(func() { _ = session.Close() })
	return Deps{Resolver: resolver, Session: session, Timeout: 30 * time.Second}
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("content = %+v", res.Content)
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content type = %T", res.Content[0])
	}
	return tc.Text
}

func TestDescribeHandler(t *testing.T) {
	deps := newTestDeps(t)
	handler := describeHandler(deps)

	res, err := handler(context.Background(), makeCallToolRequest("describe_dataset", map[string]interface{}{
		"identifier": "iris.csv",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("unexpected error: %s", textOf(t, res))
	}
	if !strings.Contains(textOf(t, res), "Dataset: iris") {
		t.Fatalf("text = %q", textOf(t, res))
	}

	res, err = handler(context.Background(), makeCallToolRequest("describe_dataset", map[string]interface{}{
		"identifier": "missing",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Fatal("missing dataset should report a tool error")
	}
}

func TestExecuteHandlerPersistence(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
	deps := newTestDeps(t)
	handler := executeHandler(deps)

	res, err := handler(context.Background(), makeCallToolRequest("execute_code", map[string]interface{}{
		"code": "x = 21",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("execute failed: %s", textOf(t, res))
	}

	res, err = handler(context.Background(), makeCallToolRequest("execute_code", map[string]interface{}{
		"code": "print(x * 2)",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(textOf(t, res), "42") {
		t.Fatalf("text = %q", textOf(t, res))
	}

	res, err = handler(context.Background(), makeCallToolRequest("execute_code", map[string]interface{}{
		"code": "1/0",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError || !strings.Contains(textOf(t, res), "ZeroDivisionError") {
		t.Fatalf("error result = %v %q", res.IsError, textOf(t, res))
	}
}

func TestHandlersRequireArguments(t *testing.T) {
	deps := newTestDeps(t)
	for name, handler := range map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"describe_dataset": describeHandler(deps),
		"execute_code":     executeHandler(deps),
		"load_dataset":     loadHandler(deps),
	} {
		res, err := handler(context.Background(), makeCallToolRequest(name, map[string]interface{}{}))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !res.IsError {
			t.Fatalf("%s accepted empty arguments", name)
		}
	}
}

func TestExecuteHandlerRejectsRiskyCode(t *testing.T) {
	deps := newTestDeps(t)
	handler := executeHandler(deps)

	res, err := handler(context.Background(), makeCallToolRequest("execute_code", map[string]interface{}{
		"code": `import os; os.system("rm -rf /")`,
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError || !strings.Contains(textOf(t, res), "Code rejected") {
		t.Fatalf("risky code passed: %v %q", res.IsError, textOf(t, res))
	}
}
