package scraper

import "testing"

func TestFoldDiacritics(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Kadıköy", "Kadikoy"},
		{"Çankaya", "Cankaya"},
		{"Şişli", "Sisli"},
		{"Beşiktaş", "Besiktas"},
		{"Bağcılar", "Bagcilar"},
		{"İstanbul", "istanbul"},
		{"Göztepe", "Goztepe"},
		{"Ümraniye", "Umraniye"},
		{"plain ascii", "plain ascii"},
	}

	for _, tt := range tests {
		if got := FoldDiacritics(tt.in); got != tt.want {
			t.Errorf("FoldDiacritics(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Kadıköy", "kadikoy"},
		{"Çekmeköy", "cekmekoy"},
		{"Gaziosmanpaşa", "gaziosmanpasa"},
		{"Dolapdere Mahallesi", "dolapdere-mahallesi"},
		{"  Fener   Mahallesi  ", "fener-mahallesi"},
		{"Kat: 3 (Giriş)", "kat-3-giris"},
		{"a--b", "a-b"},
	}

	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestSlugifyDeterministic(t *testing.T) {
	const in = "Büyükçekmece Merkez"
	first := Slugify(in)
	for i := 0; i < 10; i++ {
		if got := Slugify(in); got != first {
			t.Fatalf("Slugify(%q) not stable: %q vs %q", in, first, got)
		}
	}
}

func TestSnakeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Oda Sayısı", "oda_sayisi"},
		{"Bina Yaşı", "bina_yasi"},
		{"Isıtma Tipi", "isitma_tipi"},
		{"Brüt / Net M2", "brut__net_m2"},
		{"  Kat  ", "kat"},
	}

	for _, tt := range tests {
		if got := SnakeKey(tt.in); got != tt.want {
			t.Errorf("SnakeKey(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Satılık   Daire \n ", "Satılık Daire"},
		{"tek", "tek"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := CleanText(tt.in); got != tt.want {
			t.Errorf("CleanText(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}
