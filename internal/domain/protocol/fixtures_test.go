package protocol

func testCatalog() []ExamCatalogEntry {
	return []ExamCatalogEntry{
		{Code: "EXAM_CLINIQUE_COMPLET", Label: "Examen clinique complet", Category: CategoryClinical, Mandatory: true},
		{Code: "RADIO_THORAX", Label: "Radiographie thoracique", Category: CategoryImaging},
		{Code: "PLOMBEMIE", Label: "Plombémie", Category: CategoryToxicologic},
		{Code: "SPIROMETRIE", Label: "Spirométrie", Category: CategoryFunctional},
		{Code: "AUDIOGRAMME", Label: "Audiométrie", Category: CategoryFunctional},
	}
}

func testSectors() []Sector {
	return []Sector{
		{
			Code: "MINES",
			Name: "Mines et carrières",
			Departments: []Department{
				{
					Code:       "MINES_EXTRACTION",
					Name:       "Extraction",
					SectorCode: "MINES",
					Positions: []Position{
						{
							Code:           "FOREUR",
							Name:           "Foreur / Dynamiteur",
							DepartmentCode: "MINES_EXTRACTION",
							SectorCode:     "MINES",
							Protocols: []VisitProtocol{
								{
									VisitType:        VisitPreEmployment,
									VisitTypeLabel:   "Visite d'embauche",
									RequiredExams:    []string{"EXAM_CLINIQUE_COMPLET", "RADIO_THORAX", "PLOMBEMIE"},
									RecommendedExams: []string{"SPIROMETRIE"},
								},
								{
									VisitType:      VisitPeriodic,
									VisitTypeLabel: "Visite périodique",
									RequiredExams:  []string{"SPIROMETRIE", "AUDIOGRAMME"},
									ValidityMonths: 12,
								},
							},
						},
					},
				},
			},
		},
		{
			Code: "BANQUE",
			Name: "Banque",
			Departments: []Department{
				{
					Code: "BANQUE_AGENCE",
					Name: "Agence",
					Positions: []Position{
						{
							Code: "GUICHETIER",
							Name: "Guichetier",
							Protocols: []VisitProtocol{
								{VisitType: VisitExit, RequiredExams: []string{}},
							},
						},
					},
				},
			},
		},
	}
}

func testIndex(opts ...IndexOption) *Index {
	return BuildIndex(testSectors(), testCatalog(), opts...)
}

func examCodes(entries []ExamCatalogEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Code
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
