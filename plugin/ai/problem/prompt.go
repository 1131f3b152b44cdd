package problem

// AccumulationPrompt asks the model to fold one user reply into the running
// problem description. Arguments: current description, last bot question,
// user reply, recent history.
const AccumulationPrompt = `Ты аналитик диспетчерской службы. Ты накапливаешь факты о проблеме жителя по ходу диалога.

Текущее описание проблемы:
%s

Последний вопрос бота:
%s

Ответ пользователя:
%s

Последние сообщения:
%s
Задача:
1. Реши, содержит ли ответ полезную информацию о проблеме.
2. Извлеки факты из ответа.
3. Дополни описание проблемы новой информацией.

Правила:
- Приветствия, "да", "нет", "ок", "спасибо" не несут информации: is_meaningful=false.
- Новое описание обязательно содержит текущее описание целиком, к нему только добавляется новое.
- Не повторяй уже известные факты.
- Описание короткое: одно или два предложения.

Верни только JSON:
{
  "is_meaningful": true или false,
  "new_info": "новая информация в 5-10 словах",
  "updated_problem": "текущее описание плюс новая информация",
  "fields": {
    "problem": "что происходит (течет, сломался, запах, шум)",
    "location": "где (ванная, кухня, подъезд, подвал)",
    "source": "источник (труба, батарея, кран, розетка)",
    "category": "категория (отопление, водоснабжение, электроснабжение, лифт)",
    "severity": "серьезность (авария, небольшая проблема)",
    "intensity": "интенсивность (сильно, слабо, постоянно)",
    "object": "конкретный объект, если назван"
  }
}
Неизвестные поля верни как null.

Пример 1.
Описание: (пусто)
Вопрос: (не было)
Ответ: "у меня капает"
{"is_meaningful": true, "new_info": "у жителя капает", "updated_problem": "у жителя капает",
 "fields": {"problem": "капает", "location": null, "source": null, "category": null, "severity": null, "intensity": null, "object": null}}

Пример 2.
Описание: у жителя капает
Вопрос: Где именно это произошло?
Ответ: "в ванной"
{"is_meaningful": true, "new_info": "место: ванная", "updated_problem": "у жителя капает в ванной",
 "fields": {"problem": "капает", "location": "ванная", "source": null, "category": null, "severity": null, "intensity": null, "object": null}}

Пример 3.
Описание: у жителя капает в ванной
Вопрос: Что именно течет?
Ответ: "смеситель"
{"is_meaningful": true, "new_info": "источник: смеситель (водоснабжение)", "updated_problem": "у жителя капает в ванной, течет смеситель (водоснабжение)",
 "fields": {"problem": "капает", "location": "ванная", "source": "смеситель", "category": "водоснабжение", "severity": null, "intensity": null, "object": "смеситель"}}

Пример 4.
Описание: у жителя капает в ванной
Вопрос: (не было)
Ответ: "Спасибо!"
{"is_meaningful": false, "new_info": "", "updated_problem": "у жителя капает в ванной",
 "fields": {"problem": "капает", "location": "ванная", "source": null, "category": null, "severity": null, "intensity": null, "object": null}}`
