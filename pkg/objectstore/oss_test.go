package objectstore

import "testing"

func TestOSSStore_URLRoundTrip(t *testing.T) {
	s := &OSSStore{endpoint: "https://oss-eu-west-1.aliyuncs.com", bucketName: "paxify", prefix: "receipts"}

	key := s.Key("PAX-1-abcd.pdf")
	if key != "receipts/PAX-1-abcd.pdf" {
		t.Fatalf("unexpected key %q", key)
	}

	url := s.PublicURL(key)
	if url != "https://paxify.oss-eu-west-1.aliyuncs.com/receipts/PAX-1-abcd.pdf" {
		t.Fatalf("unexpected url %q", url)
	}

	got, ok := s.KeyFromURL(url)
	if !ok || got != key {
		t.Fatalf("expected key %q back, got %q (ok=%t)", key, got, ok)
	}
	if _, ok := s.KeyFromURL("https://elsewhere.example/receipts/x.pdf"); ok {
		t.Fatal("expected foreign url to be rejected")
	}
}

func TestOSSStore_PublicBase(t *testing.T) {
	s := &OSSStore{endpoint: "oss-eu-west-1.aliyuncs.com", bucketName: "paxify", publicBase: "https://cdn.paxify.com"}
	if got := s.PublicURL("a/b.pdf"); got != "https://cdn.paxify.com/a/b.pdf" {
		t.Fatalf("unexpected url %q", got)
	}
	if got := s.PublicURL(""); got != "" {
		t.Fatalf("expected empty url for empty key, got %q", got)
	}
}
