package sqlinline

const QInsertConversation = `--sql 642fd751-d4bf-4522-a94a-78dbef23edf3
insert into conversations (id, user_id, title, created_at, updated_at)
values ($1::uuid, $2::text, $3::text, now(), now())
returning created_at, updated_at;
`

const QSelectConversation = `--sql 31fc8ace-0ed5-4f46-bdf9-5e247fd104b5
select id, user_id, title, created_at, updated_at
from conversations
where id = $1::uuid;
`

const QListConversationMessages = `--sql 6ad8b0db-2882-4bd1-ae14-3b92ff136475
select m.id, m.conversation_id, m.role, m.content, m.created_at, m.updated_at,
       j.id, j.message_id, j.status, j.script, j.video_url, j.error, j.created_at, j.updated_at
from messages m
left join jobs j on j.message_id = m.id
where m.conversation_id = $1::uuid
order by m.created_at asc;
`

const QListConversationVideoURLs = `--sql 0f56bbcb-dfa6-47f8-8cb9-3e48660bbb93
select j.video_url
from jobs j
join messages m on m.id = j.message_id
where m.conversation_id = $1::uuid
  and j.video_url is not null;
`

// Messages and jobs go with the conversation through ON DELETE CASCADE.
const QDeleteConversation = `--sql eb89f1e3-0670-4815-887b-ec0683da99ec
delete from conversations
where id = $1::uuid;
`
