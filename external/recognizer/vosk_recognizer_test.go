package recognizer

import (
	"testing"
)

type fakeVoskStream struct {
	accept  int
	result  string
	partial string
	final   string
	freed   bool
	got     [][]byte
}

func (s *fakeVoskStream) AcceptWaveform(buffer []byte) int {
	s.got = append(s.got, buffer)
	return s.accept
}

func (s *fakeVoskStream) Result() string        { return s.result }
func (s *fakeVoskStream) PartialResult() string { return s.partial }
func (s *fakeVoskStream) FinalResult() string   { return s.final }
func (s *fakeVoskStream) Free()                 { s.freed = true }

func TestVoskRecognizer_Partial(t *testing.T) {
	s := &fakeVoskStream{accept: 0, partial: `{"partial" : "שלום"}`}
	r := newVoskRecognizer(s)

	res, err := r.Accept([]byte{1, 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Final || res.Text != "שלום" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(s.got) != 1 {
		t.Fatalf("expected waveform to be forwarded once, got %d", len(s.got))
	}
}

func TestVoskRecognizer_Final(t *testing.T) {
	s := &fakeVoskStream{accept: 1, result: "{\n  \"text\" : \"hello world\"\n}"}
	r := newVoskRecognizer(s)

	res, err := r.Accept([]byte{1, 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Final || res.Text != "hello world" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestVoskRecognizer_Rejected(t *testing.T) {
	r := newVoskRecognizer(&fakeVoskStream{accept: -1})
	if _, err := r.Accept([]byte{1, 2}); err == nil {
		t.Fatal("expected error for rejected waveform")
	}
}

func TestVoskRecognizer_MalformedJSON(t *testing.T) {
	r := newVoskRecognizer(&fakeVoskStream{accept: 1, result: "not json"})
	if _, err := r.Accept([]byte{1, 2}); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestVoskRecognizer_FlushAndClose(t *testing.T) {
	s := &fakeVoskStream{final: `{"text": "tail"}`}
	r := newVoskRecognizer(s)

	res, err := r.Flush()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Final || res.Text != "tail" {
		t.Fatalf("unexpected flush result: %+v", res)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if !s.freed {
		t.Fatal("expected vosk recognizer to be freed")
	}
}

func TestNoopFactory(t *testing.T) {
	rec, err := NoopFactory{}.NewRecognizer(16000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := rec.Accept([]byte{1, 2, 3, 4})
	if err != nil || res.Final || res.Text != "" {
		t.Fatalf("unexpected result: %+v err=%v", res, err)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
}
