package tools

import "testing"

func TestRegisterNativeDoesNotOverwriteWASM(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterWASM(&fakeTool{name: "read_file", output: "guest"})
	reg.RegisterNative(&fakeTool{name: "read_file", output: "native"})

	got, ok := reg.Get("read_file")
	if !ok {
		t.Fatal("expected read_file to be registered")
	}
	out, err := got.Execute(nil, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out != "guest" {
		t.Errorf("got %q, want guest to shadow native", out)
	}
	if !reg.IsWASM("read_file") {
		t.Error("expected read_file to be flagged as a WASM-backed tool")
	}
}

func TestRegisterNativeFillsGap(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterWASM(&fakeTool{name: "read_file", output: "guest"})
	reg.RegisterNative(&fakeTool{name: "write_file", output: "native"})

	if _, ok := reg.Get("write_file"); !ok {
		t.Error("expected write_file (no guest present) to be registered natively")
	}
	if reg.IsWASM("write_file") {
		t.Error("write_file should not be flagged as WASM-backed")
	}
}

func TestGetUnknown(t *testing.T) {
	reg := NewRegistry()
	if _, ok := reg.Get("nope"); ok {
		t.Error("expected unknown tool to be absent")
	}
}
