package catalog

// DemoServices is a small catalog used by the demo chat and by tests.
// It mirrors store/seed/sqlite/10__service.sql.
func DemoServices() []*Service {
	return []*Service{
		{ID: 1, Code: "WTR-LEAK-APT", Name: "Устранение протечки в квартире", Description: "Течь смесителя, крана, труб водоснабжения внутри квартиры",
			Attributes: Attributes{IncidentType: IncidentTypeIncident, Category: "Водоснабжение и санитария", LocationType: LocationInUnit},
			Tags:       []string{"протечка", "течь", "кран", "смеситель", "капает"}},
		{ID: 2, Code: "WTR-RISER", Name: "Авария на стояке водоснабжения", Description: "Прорыв или течь общедомового стояка холодной или горячей воды",
			Attributes: Attributes{IncidentType: IncidentTypeIncident, Category: "Водоснабжение и санитария", LocationType: LocationShared},
			Tags:       []string{"стояк", "прорыв", "затопило"}},
		{ID: 3, Code: "WTR-CLOG", Name: "Устранение засора канализации", Description: "Засор унитаза, раковины, канализационного стояка",
			Attributes: Attributes{IncidentType: IncidentTypeIncident, Category: "Водоснабжение и санитария", LocationType: LocationInUnit},
			Tags:       []string{"засор", "канализация", "унитаз"}},
		{ID: 4, Code: "HEAT-RADIATOR", Name: "Ремонт радиатора отопления", Description: "Холодные или текущие батареи, завоздушивание системы отопления",
			Attributes: Attributes{IncidentType: IncidentTypeIncident, Category: "Отопление", LocationType: LocationInUnit},
			Tags:       []string{"батарея", "радиатор", "отопление"}},
		{ID: 5, Code: "ELEC-APT", Name: "Неисправность электропроводки в квартире", Description: "Нет света, искрит розетка, выбивает автомат",
			Attributes: Attributes{IncidentType: IncidentTypeIncident, Category: "Электроснабжение", LocationType: LocationInUnit},
			Tags:       []string{"свет", "розетка", "проводка", "автомат"}},
		{ID: 6, Code: "ELEC-STAIR", Name: "Замена освещения в подъезде", Description: "Не горит лампа на лестничной клетке или в подъезде",
			Attributes: Attributes{IncidentType: IncidentTypeIncident, Category: "Электроснабжение", LocationType: LocationShared},
			Tags:       []string{"лампа", "освещение"}},
		{ID: 7, Code: "LIFT-STOP", Name: "Остановка лифта", Description: "Лифт не работает, застрял между этажами",
			Attributes: Attributes{IncidentType: IncidentTypeIncident, Category: "Лифтовое хозяйство", LocationType: LocationShared},
			Tags:       []string{"лифт", "застрял"}},
		{ID: 8, Code: "ROOF-LEAK", Name: "Протечка кровли", Description: "Течет крыша, протечка с чердака, конструктивные элементы",
			Attributes: Attributes{IncidentType: IncidentTypeIncident, Category: "Конструктивные элементы", LocationType: LocationShared},
			Tags:       []string{"крыша", "кровля", "чердак"}},
		{ID: 9, Code: "CLEAN-STAIR", Name: "Уборка подъезда", Description: "Влажная уборка лестничных клеток, вывоз мусора",
			Attributes: Attributes{IncidentType: IncidentTypeRequest, Category: "Санитарное содержание", LocationType: LocationShared},
			Tags:       []string{"уборка", "мусор"}},
		{ID: 10, Code: "GREEN-CUT", Name: "Покос травы и обрезка деревьев", Description: "Озеленение придомовой территории",
			Attributes: Attributes{IncidentType: IncidentTypeRequest, Category: "Озеленение", LocationType: LocationShared},
			Tags:       []string{"трава", "дерево", "газон"}},
		{ID: 11, Code: "INFO-METER", Name: "Консультация по приборам учета", Description: "Передача показаний счетчиков, поверка приборов учета",
			Attributes: Attributes{IncidentType: IncidentTypeRequest, Category: "Водоснабжение и санитария", LocationType: LocationInUnit},
			Tags:       []string{"счетчик", "показания", "поверка"}},
	}
}
