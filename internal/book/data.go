package book

// ecoTable is a compact cut of the ECO catalogue, ordered from general
// lines to specific ones so prefix positions keep the broader name.
var ecoTable = []Entry{
	{"A00", "Hungarian Opening", "g3"},
	{"A01", "Nimzo-Larsen Attack", "b3"},
	{"A02", "Bird Opening", "f4"},
	{"A04", "Reti Opening", "Nf3"},
	{"A07", "King's Indian Attack", "Nf3 d5 g3"},
	{"A10", "English Opening", "c4"},
	{"A20", "English Opening: King's English", "c4 e5"},
	{"A30", "English Opening: Symmetrical", "c4 c5"},
	{"A40", "Queen's Pawn Game", "d4"},
	{"A45", "Indian Defense", "d4 Nf6"},
	{"A56", "Benoni Defense", "d4 Nf6 c4 c5"},
	{"B00", "King's Pawn Opening", "e4"},
	{"B01", "Scandinavian Defense", "e4 d5"},
	{"B02", "Alekhine Defense", "e4 Nf6"},
	{"B06", "Modern Defense", "e4 g6"},
	{"B07", "Pirc Defense", "e4 d6 d4 Nf6"},
	{"B10", "Caro-Kann Defense", "e4 c6"},
	{"B12", "Caro-Kann Defense: Advance Variation", "e4 c6 d4 d5 e5"},
	{"B13", "Caro-Kann Defense: Exchange Variation", "e4 c6 d4 d5 exd5 cxd5"},
	{"B18", "Caro-Kann Defense: Classical Variation", "e4 c6 d4 d5 Nc3 dxe4 Nxe4 Bf5"},
	{"B20", "Sicilian Defense", "e4 c5"},
	{"B21", "Sicilian Defense: Smith-Morra Gambit", "e4 c5 d4"},
	{"B23", "Sicilian Defense: Closed", "e4 c5 Nc3"},
	{"B27", "Sicilian Defense", "e4 c5 Nf3"},
	{"B30", "Sicilian Defense: Old Sicilian", "e4 c5 Nf3 Nc6"},
	{"B40", "Sicilian Defense: French Variation", "e4 c5 Nf3 e6"},
	{"B50", "Sicilian Defense", "e4 c5 Nf3 d6"},
	{"B54", "Sicilian Defense: Open", "e4 c5 Nf3 d6 d4 cxd4 Nxd4"},
	{"B90", "Sicilian Defense: Najdorf Variation", "e4 c5 Nf3 d6 d4 cxd4 Nxd4 Nf6 Nc3 a6"},
	{"B33", "Sicilian Defense: Sveshnikov Variation", "e4 c5 Nf3 Nc6 d4 cxd4 Nxd4 Nf6 Nc3 e5"},
	{"C00", "French Defense", "e4 e6"},
	{"C02", "French Defense: Advance Variation", "e4 e6 d4 d5 e5"},
	{"C03", "French Defense: Tarrasch Variation", "e4 e6 d4 d5 Nd2"},
	{"C11", "French Defense: Classical Variation", "e4 e6 d4 d5 Nc3 Nf6"},
	{"C20", "King's Pawn Game", "e4 e5"},
	{"C25", "Vienna Game", "e4 e5 Nc3"},
	{"C30", "King's Gambit", "e4 e5 f4"},
	{"C33", "King's Gambit Accepted", "e4 e5 f4 exf4"},
	{"C40", "King's Knight Opening", "e4 e5 Nf3"},
	{"C41", "Philidor Defense", "e4 e5 Nf3 d6"},
	{"C42", "Russian Game", "e4 e5 Nf3 Nf6"},
	{"C44", "King's Knight Opening: Normal", "e4 e5 Nf3 Nc6"},
	{"C45", "Scotch Game", "e4 e5 Nf3 Nc6 d4 exd4 Nxd4"},
	{"C50", "Italian Game", "e4 e5 Nf3 Nc6 Bc4"},
	{"C53", "Italian Game: Giuoco Piano", "e4 e5 Nf3 Nc6 Bc4 Bc5 c3"},
	{"C57", "Italian Game: Two Knights Defense", "e4 e5 Nf3 Nc6 Bc4 Nf6"},
	{"C60", "Ruy Lopez", "e4 e5 Nf3 Nc6 Bb5"},
	{"C65", "Ruy Lopez: Berlin Defense", "e4 e5 Nf3 Nc6 Bb5 Nf6"},
	{"C68", "Ruy Lopez: Exchange Variation", "e4 e5 Nf3 Nc6 Bb5 a6 Bxc6"},
	{"C70", "Ruy Lopez: Morphy Defense", "e4 e5 Nf3 Nc6 Bb5 a6 Ba4"},
	{"C78", "Ruy Lopez: Morphy Defense", "e4 e5 Nf3 Nc6 Bb5 a6 Ba4 Nf6 O-O"},
	{"C84", "Ruy Lopez: Closed", "e4 e5 Nf3 Nc6 Bb5 a6 Ba4 Nf6 O-O Be7"},
	{"D00", "Queen's Pawn Game", "d4 d5"},
	{"D02", "London System", "d4 d5 Nf3 Nf6 Bf4"},
	{"D04", "Colle System", "d4 d5 Nf3 Nf6 e3"},
	{"D06", "Queen's Gambit", "d4 d5 c4"},
	{"D10", "Slav Defense", "d4 d5 c4 c6"},
	{"D20", "Queen's Gambit Accepted", "d4 d5 c4 dxc4"},
	{"D30", "Queen's Gambit Declined", "d4 d5 c4 e6"},
	{"D35", "Queen's Gambit Declined: Exchange Variation", "d4 d5 c4 e6 Nc3 Nf6 cxd5 exd5"},
	{"D85", "Gruenfeld Defense: Exchange Variation", "d4 Nf6 c4 g6 Nc3 d5"},
	{"E00", "Indian Defense: East Indian", "d4 Nf6 c4 e6"},
	{"E20", "Nimzo-Indian Defense", "d4 Nf6 c4 e6 Nc3 Bb4"},
	{"E60", "King's Indian Defense", "d4 Nf6 c4 g6"},
	{"E90", "King's Indian Defense: Normal Variation", "d4 Nf6 c4 g6 Nc3 Bg7 e4 d6 Nf3"},
}
