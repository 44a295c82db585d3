package semantic

import (
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
)

func TestChunkFilter_Empty(t *testing.T) {
	if f := chunkFilter(nil); f != nil {
		t.Fatalf("expected nil filter, got %v", f)
	}
	if f := chunkFilter([]string{}); f != nil {
		t.Fatalf("expected nil filter for empty slice, got %v", f)
	}
}

func TestChunkFilter_Inclusion(t *testing.T) {
	f := chunkFilter([]string{"c1", "c2"})
	if f == nil || len(f.Must) != 1 {
		t.Fatalf("expected one must condition, got %v", f)
	}
	field := f.Must[0].GetField()
	if field.GetKey() != "chunk_id" {
		t.Errorf("expected chunk_id key, got %s", field.GetKey())
	}
	kws := field.GetMatch().GetKeywords().GetStrings()
	if len(kws) != 2 || kws[0] != "c1" || kws[1] != "c2" {
		t.Errorf("unexpected keywords: %v", kws)
	}
}

func TestToPoints(t *testing.T) {
	records := []VectorRecord{
		{
			ID:        "11111111-1111-1111-1111-111111111111",
			Embedding: []float32{0.1, 0.2},
			Payload: map[string]any{
				"text":     "Humanoid robots are machines.",
				"doc_id":   "book:ch1",
				"chunk_id": "book:ch1-0",
				"index":    3,
			},
		},
	}
	points := toPoints(records)
	if len(points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(points))
	}
	p := points[0]
	if p.GetId().GetUuid() != records[0].ID {
		t.Errorf("unexpected id: %s", p.GetId().GetUuid())
	}
	if got := p.GetVectors().GetVector().GetData(); len(got) != 2 || got[0] != 0.1 {
		t.Errorf("unexpected vector: %v", got)
	}
	if p.Payload["text"].GetStringValue() != "Humanoid robots are machines." {
		t.Errorf("unexpected text payload: %v", p.Payload["text"])
	}
	if p.Payload["index"].GetIntegerValue() != 3 {
		t.Errorf("expected int payload 3, got %v", p.Payload["index"])
	}
}

func TestResultFromPoint(t *testing.T) {
	p := &pb.ScoredPoint{
		Id:    &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: "abc"}},
		Score: 0.82,
		Payload: map[string]*pb.Value{
			"text":     {Kind: &pb.Value_StringValue{StringValue: "passage"}},
			"doc_id":   {Kind: &pb.Value_StringValue{StringValue: "book:ch2"}},
			"chunk_id": {Kind: &pb.Value_StringValue{StringValue: "book:ch2-4"}},
			"title":    {Kind: &pb.Value_StringValue{StringValue: "Actuators"}},
			"url":      {Kind: &pb.Value_StringValue{StringValue: "https://example.com/ch2"}},
			"source":   {Kind: &pb.Value_StringValue{StringValue: "book"}},
		},
	}
	sr := resultFromPoint(p)
	if sr.ID != "abc" || sr.Score != 0.82 {
		t.Errorf("unexpected id/score: %+v", sr)
	}
	if sr.Content != "passage" || sr.DocID != "book:ch2" || sr.ChunkID != "book:ch2-4" {
		t.Errorf("unexpected payload decode: %+v", sr)
	}
	if sr.Title != "Actuators" || sr.URL != "https://example.com/ch2" || sr.Source != "book" {
		t.Errorf("unexpected metadata decode: %+v", sr)
	}
}
