package storage

import (
	"testing"
	"time"
)

func TestBuildOrderExportPath(t *testing.T) {
	path, err := BuildObjectPath(PurposeOrderExport, PathParams{
		ShopID:      "lanparty",
		OrderNumber: "LP-2024-B00042",
		CreatedAt:   time.Date(2024, 3, 9, 22, 15, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := "exports/lanparty/2024/03/LP-2024-B00042.xml"
	if path != expected {
		t.Fatalf("expected %s, got %s", expected, path)
	}
}

func TestBuildObjectPathRejectsInvalidSegment(t *testing.T) {
	_, err := BuildObjectPath(PurposeOrderExport, PathParams{
		ShopID:      "../bad",
		OrderNumber: "LP-00001",
		CreatedAt:   time.Now(),
	})
	if err == nil {
		t.Fatalf("expected error for invalid segment")
	}
}

func TestBuildOrderExportPathRequiresTimestamp(t *testing.T) {
	if _, err := BuildObjectPath(PurposeOrderExport, PathParams{ShopID: "s", OrderNumber: "n"}); err == nil {
		t.Fatalf("expected error without createdAt")
	}
}

func TestBuildObjectPathUnknownPurpose(t *testing.T) {
	if _, err := BuildObjectPath(ObjectPurpose("nope"), PathParams{}); err == nil {
		t.Fatalf("expected error for unknown purpose")
	}
}
