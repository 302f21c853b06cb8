package location

import (
	"strings"
	"testing"
)

func TestFindAddress(t *testing.T) {
	e := NewExtractor(nil, nil)

	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{
			"street abbreviation with number",
			"Do wynajęcia ładne, nowoczesne, 2 pokojowe mieszkanie w Wola Park Residence przy ul. Sowińskiego 25, usytuowane na 6 piętrze 7- piętrowego apartamentowca z 2016 roku. ",
			"ul. Sowińskiego 25",
		},
		{
			"street ended by sentence",
			"Do wynajęcia ładna kawalerka przy ulicy Pejzażowej.",
			"ulicy Pejzażowej",
		},
		{
			"estate name with two words",
			"Mieszkanie na prestiżowym osiedlu Marina Mokotów o powierzchni 35 m2, w pełni umeblowane.",
			"osiedlu Marina Mokotów",
		},
		{
			"stops at bracket",
			"Mieszkanie położone jest przy ulicy Żeromskiego 1 (osiedle Słodowiec City).",
			"ulicy Żeromskiego 1",
		},
		{
			"estate ended by sentence",
			"Nowe mieszkanie na chronionym osiedlu Shiraz. W budynku na dole recepcja.",
			"osiedlu Shiraz",
		},
		{
			"abbreviation glued to name",
			"Do wynajęcia jasne, dwustronne i ciche mieszkanie przy ul.Hery 25.",
			"ul.Hery 25",
		},
		{
			"initial inside name",
			"ŻOLIBORZ, NOWE, 2 pok. 53m2, ul.Z.Krasińskiego\nNowiutkie mieszkanie do wynajęcia.",
			"ul.Z.Krasińskiego",
		},
		{
			"curly quotes",
			"Mieszkanie w spokojnej części dzielnicy Mokotów (osiedle „Służew nad Dolinką”).",
			"osiedle „Służew",
		},
		{
			"at most four segments",
			"Blisko al. Jana Pawła II Wielkiego w centrum.",
			"al. Jana Pawła II",
		},
		{
			"trailing separator run trimmed",
			"Adres: ul. Prosta 5  obok sklepu",
			"ul. Prosta 5",
		},
		{
			"uppercase marker",
			"Mieszkanie przy UL. Marszałkowskiej 10",
			"UL. Marszałkowskiej 10",
		},
		{
			"marker with nothing after it",
			"Adres podamy telefonicznie, ul. ",
			"ul",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := e.FindAddress(tt.text)
			if !ok {
				t.Fatalf("Expected address in %q", tt.text)
			}
			if got != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, got)
			}
		})
	}
}

func TestFindAddressMarkerNeedsWordStart(t *testing.T) {
	e := NewExtractor(nil, nil)

	// "Centrala" ends in "al" but must not match
	if got, ok := e.FindAddress("Centrala. Mieszkanie dwupokojowe."); ok {
		t.Errorf("Expected no address, got '%s'", got)
	}
}

func TestIsPerfectLocation(t *testing.T) {
	e := NewExtractor(nil, nil)

	if !e.IsPerfectLocation("Wynajmę 2 pokojowe mieszkanie zlokalizowane przy samej stacji metra - Służew") {
		t.Error("Expected perfect location")
	}
	if !e.IsPerfectLocation("Mieszkanie OBOK METRA") {
		t.Error("Expected case-insensitive perfect location")
	}
	if e.IsPerfectLocation("Mieszkanie po remoncie, usytuowane na 4 piętrze z windą. Wymagana kaucja w wysokości 1600 zł. Mieszkanie przeznaczone dla osób nie palących. ") {
		t.Error("Expected not perfect location")
	}
}

func TestExtract(t *testing.T) {
	e := NewExtractor(nil, nil)

	tests := []struct {
		name string
		text string
		kind Kind
		want string
	}{
		{"perfect wins over address", "Mieszkanie przy ul. Kolejowej 5, obok metra", PerfectMatch, ""},
		{"address", "Kawalerka przy ul. Kolejowej 5", Address, "ul. Kolejowej 5"},
		{"nothing", "Mieszkanie po remoncie, usytuowane na 4 piętrze z windą. Mieszkanie przeznaczone dla osób nie palących. ", NotFound, ""},
		{"empty", "", NotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Extract(tt.text)
			if got.Kind != tt.kind {
				t.Fatalf("Expected kind %s, got %s", tt.kind, got.Kind)
			}
			if got.Text != tt.want {
				t.Errorf("Expected '%s', got '%s'", tt.want, got.Text)
			}
		})
	}
}

func TestExtractNormalizesDecomposedText(t *testing.T) {
	e := NewExtractor(nil, nil)

	// "Żeromskiego" with Z followed by a combining dot above
	decomposed := "przy ulicy Z\u0307eromskiego 1 (blok)"
	got := e.Extract(decomposed)
	if got.Kind != Address {
		t.Fatalf("Expected address, got %s", got.Kind)
	}
	if got.Text != "ulicy \u017beromskiego 1" {
		t.Errorf("Expected precomposed 'ulicy Żeromskiego 1', got '%s'", got.Text)
	}
}

func TestCustomSets(t *testing.T) {
	e := NewExtractor([]string{"near the park"}, []string{"street"})

	if got := e.Extract("Flat NEAR THE PARK"); got.Kind != PerfectMatch {
		t.Errorf("Expected perfect match, got %s", got.Kind)
	}
	got := e.Extract("Flat on street Baker 221 with a view")
	if got.Kind != Address || got.Text != "street Baker 221" {
		t.Errorf("Expected address 'street Baker 221', got %s '%s'", got.Kind, got.Text)
	}
	if got := e.Extract("Mieszkanie obok metra przy ul. Prostej"); got.Kind != NotFound {
		t.Errorf("Expected default sets to be replaced, got %s", got.Kind)
	}
}

func TestExtractProperties(t *testing.T) {
	e := NewExtractor(nil, nil)

	texts := []string{
		"Mieszkanie przy ul. Prosta Długa Krzywa Wąska Szeroka",
		"os. A B C D E F",
		"pl. Zbawiciela",
		"ulica",
		"al.\"Niepodległości\" 100",
		"galerii Mokotów",
	}

	for _, text := range texts {
		first := e.Extract(text)
		second := e.Extract(text)
		if first != second {
			t.Errorf("Expected deterministic result for %q", text)
		}
		if first.Kind != Address {
			continue
		}
		if first.Text == "" {
			t.Errorf("Expected non-empty address for %q", text)
		}
		if !strings.Contains(text, first.Text) {
			t.Errorf("Expected '%s' to be a substring of %q", first.Text, text)
		}
		if segments := len(strings.FieldsFunc(first.Text, isSeparator)); segments > maxSegments {
			t.Errorf("Expected at most %d segments, got %d in '%s'", maxSegments, segments, first.Text)
		}
	}
}
